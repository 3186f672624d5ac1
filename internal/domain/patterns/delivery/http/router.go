package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/pkg/httputil"
)

// Router registers pattern HTTP routes
type Router struct {
	handler    *PatternHandler
	middleware httputil.Middleware
	logger     zerolog.Logger
}

// NewRouter creates a new pattern router
func NewRouter(handler *PatternHandler, middleware httputil.Middleware, logger zerolog.Logger) *Router {
	return &Router{
		handler:    handler,
		middleware: middleware,
		logger:     logger,
	}
}

// RegisterRoutes registers pattern routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	mw := r.middleware

	rt.POST("/api/v1/telegram/katka/patterns", mw(r.handler.RunSearch))
	rt.GET("/api/v1/telegram/katka/{phone}/patterns-index", mw(r.handler.Index))
	rt.GET("/api/v1/telegram/katka/{phone}/patterns-bundle/{chat_id}/{match_id}", mw(r.handler.Bundle))

	browser := "/api/v1/telegram/katka/patterns-browser"
	rt.POST(browser, mw(r.handler.OpenBrowser))
	rt.DELETE(browser, mw(r.handler.CloseBrowser))
	rt.PUT(browser+"/chat-filter", mw(r.handler.SetChatFilter))
	rt.POST(browser+"/chats/more", mw(r.handler.ShowMoreChats))
	rt.POST(browser+"/chat", mw(r.handler.SelectChat))
	rt.PUT(browser+"/match-filters", mw(r.handler.SetMatchFilters))
	rt.POST(browser+"/matches/more", mw(r.handler.ShowMoreMatches))
	rt.POST(browser+"/match", mw(r.handler.SelectMatch))
	rt.POST(browser+"/retry", mw(r.handler.Retry))
	rt.POST(browser+"/back", mw(r.handler.Back))

	r.logger.Info().Msg("pattern routes registered")
}
