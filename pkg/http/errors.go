package http

import "fmt"

// AppError is an error with a logical status attached. AppErrorResponse
// preserves the status and code of any *AppError in the chain; errors
// without one collapse to a logical 500.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError builds an AppError carrying the given logical status.
func NewAppError(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// WithError attaches the underlying cause. The cause stays out of the JSON
// body and surfaces only through Error and Unwrap.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}
