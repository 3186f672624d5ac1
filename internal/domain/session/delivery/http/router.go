package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/pkg/httputil"
)

// Router registers session HTTP routes
type Router struct {
	handler    *SessionHandler
	middleware httputil.Middleware
	logger     zerolog.Logger
}

// NewRouter creates a new session router
func NewRouter(handler *SessionHandler, middleware httputil.Middleware, logger zerolog.Logger) *Router {
	return &Router{
		handler:    handler,
		middleware: middleware,
		logger:     logger,
	}
}

// RegisterRoutes registers session routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	mw := r.middleware

	rt.GET("/api/v1/sessions", mw(r.handler.List))
	rt.GET("/api/v1/sessions/{id}", mw(r.handler.Get))
	rt.DELETE("/api/v1/sessions/{id}", mw(r.handler.Delete))
	rt.GET("/api/v1/sessions/{id}/history", mw(r.handler.History))

	rt.GET("/api/v1/telegram/katka/{phone}/metrics", mw(r.handler.Metrics))
	rt.POST("/api/v1/telegram/katka/{phone}/session-log", mw(r.handler.OpenLogTail))
	rt.GET("/api/v1/telegram/katka/session-log/{subscription_id}", mw(r.handler.ReadLogTail))
	rt.DELETE("/api/v1/telegram/katka/session-log/{subscription_id}", mw(r.handler.CloseLogTail))

	r.logger.Info().Msg("session routes registered")
}
