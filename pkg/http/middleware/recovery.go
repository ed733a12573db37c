package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
)

// Recover turns a handler panic into a logical 500 reply so one bad
// request cannot take the server down. The reply mirrors the standard
// envelope: transport 200, failure status inside.
func Recover() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				log.Printf("http panic: %v\n%s", r, debug.Stack())

				if !c.Response().Committed {
					_ = c.JSON(http.StatusOK, map[string]interface{}{
						"status":  http.StatusInternalServerError,
						"message": http.StatusText(http.StatusInternalServerError),
						"data":    "Something went wrong",
					})
				}
			}()
			return next(c)
		}
	}
}
