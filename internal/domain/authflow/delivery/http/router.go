package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/pkg/httputil"
)

// Router registers auth flow HTTP routes
type Router struct {
	handler    *AuthFlowHandler
	middleware httputil.Middleware
	logger     zerolog.Logger
}

// NewRouter creates a new auth flow router
func NewRouter(handler *AuthFlowHandler, middleware httputil.Middleware, logger zerolog.Logger) *Router {
	return &Router{
		handler:    handler,
		middleware: middleware,
		logger:     logger,
	}
}

// RegisterRoutes registers auth flow routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	mw := r.middleware

	rt.GET("/api/v1/telegram/check-connection", mw(r.handler.CheckConnection))
	rt.POST("/api/v1/telegram/send-code", mw(r.handler.SendCode))
	rt.POST("/api/v1/telegram/resend-phone-code", mw(r.handler.ResendCode))
	rt.POST("/api/v1/telegram/verify-code", mw(r.handler.VerifyCode))
	rt.POST("/api/v1/telegram/verify-password", mw(r.handler.VerifyPassword))
	rt.POST("/api/v1/telegram/send-email-code", mw(r.handler.SendEmailCode))
	rt.POST("/api/v1/telegram/resend-email-code", mw(r.handler.ResendEmailCode))
	rt.POST("/api/v1/telegram/verify-email-code", mw(r.handler.VerifyEmailCode))
	rt.POST("/api/v1/telegram/reset-2fa", mw(r.handler.ResetTwoFA))
	rt.POST("/api/v1/telegram/change-2fa-password", mw(r.handler.ChangePassword))
	rt.DELETE("/api/v1/telegram/auth-flow", mw(r.handler.Cancel))

	r.logger.Info().Msg("auth flow routes registered")
}
