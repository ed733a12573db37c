package api

import (
	xhttp "PricePulse/pkg/http"

	"github.com/labstack/echo/v4"
)

// Router fans route registration out to the feature handlers so the server
// only sees one Handler.
type Router struct {
	handlers []xhttp.Handler
}

func NewRouter(handlers ...xhttp.Handler) *Router {
	return &Router{handlers: handlers}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	for _, h := range r.handlers {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}

var _ xhttp.Handler = (*Router)(nil)
