package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Every handler reply travels in the same envelope: transport status is
// always 200, the logical status lives in APIResponse.Status. Clients
// switch on the envelope, not on the HTTP code.

// DataResponse writes the envelope with the given logical status. Message
// is derived from the status code; data carries the detail.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// SuccessResponse writes a logical 200 envelope around data.
func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// BadRequestResponse writes a logical 400. Data is usually the
// []ValidationError produced by ReadAndValidateRequest.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// NotFoundResponse writes a logical 404 with a caller-supplied detail.
func NotFoundResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusNotFound, data)
}

// InternalServerErrorResponse writes a logical 500. The detail is fixed so
// internal error text never leaks to clients.
func InternalServerErrorResponse(c echo.Context) error {
	return DataResponse(c, http.StatusInternalServerError, "Something went wrong")
}

// AppErrorResponse unwraps err into an *AppError envelope when possible and
// falls back to a logical 500 otherwise. Handlers route all unclassified
// usecase errors through here.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return DataResponse(c, appErr.Status, []*AppError{appErr})
	}
	return InternalServerErrorResponse(c)
}
