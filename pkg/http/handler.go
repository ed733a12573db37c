package http

import "github.com/labstack/echo/v4"

// Handler is implemented by route groups the server mounts at startup.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
