package http

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/dto"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/entities"
	patternerrors "github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/errors"
	"github.com/arhteh596/granovskicrm-sub001/pkg/httputil"
)

// PatternHandler handles pattern search and browser HTTP requests
type PatternHandler struct {
	useCase deps.PatternService
	logger  zerolog.Logger
}

// NewPatternHandler creates a new pattern handler
func NewPatternHandler(useCase deps.PatternService, logger zerolog.Logger) *PatternHandler {
	return &PatternHandler{
		useCase: useCase,
		logger:  logger.With().Str("handler", "patterns").Logger(),
	}
}

// RunSearch handles POST /api/v1/telegram/katka/patterns
func (h *PatternHandler) RunSearch(ctx *fasthttp.RequestCtx) {
	var req dto.RunSearchRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.useCase.RunSearch(ctx, httputil.ConsoleID(ctx), req.PhoneNumber, req.Patterns, req.Force)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	status := fasthttp.StatusOK
	if res.Busy {
		status = fasthttp.StatusConflict
	}
	h.writeJSON(ctx, status, res)
}

// Index handles GET /api/v1/telegram/katka/{phone}/patterns-index
func (h *PatternHandler) Index(ctx *fasthttp.RequestCtx) {
	phone, _ := ctx.UserValue("phone").(string)

	index, err := h.useCase.IndexFor(ctx, phone)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, index)
}

// Bundle handles GET /api/v1/telegram/katka/{phone}/patterns-bundle/{chat_id}/{match_id}
func (h *PatternHandler) Bundle(ctx *fasthttp.RequestCtx) {
	phone, _ := ctx.UserValue("phone").(string)

	chatID, err := strconv.ParseInt(userValue(ctx, "chat_id"), 10, 64)
	if err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid chat id")
		return
	}
	matchID, err := strconv.Atoi(userValue(ctx, "match_id"))
	if err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid match id")
		return
	}

	bundle, err := h.useCase.BundleFor(ctx, phone, chatID, matchID)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, bundle)
}

// OpenBrowser handles POST /api/v1/telegram/katka/patterns-browser
func (h *PatternHandler) OpenBrowser(ctx *fasthttp.RequestCtx) {
	var req dto.OpenBrowserRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	browser, err := h.useCase.OpenBrowser(ctx, httputil.ConsoleID(ctx), req.PhoneNumber)
	h.writeBrowser(ctx, browser, err)
}

// SetChatFilter handles PUT /api/v1/telegram/katka/patterns-browser/chat-filter
func (h *PatternHandler) SetChatFilter(ctx *fasthttp.RequestCtx) {
	var req dto.ChatFilterRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	browser, err := h.useCase.SetChatFilter(ctx, httputil.ConsoleID(ctx), req.Filter)
	h.writeBrowser(ctx, browser, err)
}

// ShowMoreChats handles POST /api/v1/telegram/katka/patterns-browser/chats/more
func (h *PatternHandler) ShowMoreChats(ctx *fasthttp.RequestCtx) {
	browser, err := h.useCase.ShowMoreChats(ctx, httputil.ConsoleID(ctx))
	h.writeBrowser(ctx, browser, err)
}

// SelectChat handles POST /api/v1/telegram/katka/patterns-browser/chat
func (h *PatternHandler) SelectChat(ctx *fasthttp.RequestCtx) {
	var req dto.SelectChatRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	browser, err := h.useCase.SelectChat(ctx, httputil.ConsoleID(ctx), req.ChatID)
	h.writeBrowser(ctx, browser, err)
}

// SetMatchFilters handles PUT /api/v1/telegram/katka/patterns-browser/match-filters
func (h *PatternHandler) SetMatchFilters(ctx *fasthttp.RequestCtx) {
	var req dto.MatchFiltersRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	browser, err := h.useCase.SetMatchFilters(ctx, httputil.ConsoleID(ctx), req.Keyword, req.DateFrom, req.DateTo)
	h.writeBrowser(ctx, browser, err)
}

// ShowMoreMatches handles POST /api/v1/telegram/katka/patterns-browser/matches/more
func (h *PatternHandler) ShowMoreMatches(ctx *fasthttp.RequestCtx) {
	browser, err := h.useCase.ShowMoreMatches(ctx, httputil.ConsoleID(ctx))
	h.writeBrowser(ctx, browser, err)
}

// SelectMatch handles POST /api/v1/telegram/katka/patterns-browser/match
func (h *PatternHandler) SelectMatch(ctx *fasthttp.RequestCtx) {
	var req dto.SelectMatchRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	browser, err := h.useCase.SelectMatch(ctx, httputil.ConsoleID(ctx), req.MatchID)
	h.writeBrowser(ctx, browser, err)
}

// Retry handles POST /api/v1/telegram/katka/patterns-browser/retry
func (h *PatternHandler) Retry(ctx *fasthttp.RequestCtx) {
	browser, err := h.useCase.Retry(ctx, httputil.ConsoleID(ctx))
	h.writeBrowser(ctx, browser, err)
}

// Back handles POST /api/v1/telegram/katka/patterns-browser/back
func (h *PatternHandler) Back(ctx *fasthttp.RequestCtx) {
	browser, err := h.useCase.Back(ctx, httputil.ConsoleID(ctx))
	h.writeBrowser(ctx, browser, err)
}

// CloseBrowser handles DELETE /api/v1/telegram/katka/patterns-browser
func (h *PatternHandler) CloseBrowser(ctx *fasthttp.RequestCtx) {
	if err := h.useCase.CloseBrowser(ctx, httputil.ConsoleID(ctx)); err != nil {
		h.handleError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func userValue(ctx *fasthttp.RequestCtx, key string) string {
	v, _ := ctx.UserValue(key).(string)
	return v
}

func (h *PatternHandler) writeBrowser(ctx *fasthttp.RequestCtx, browser *entities.Browser, err error) {
	if err != nil {
		h.handleError(ctx, err)
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, dto.RenderBrowser(browser))
}

// handleError maps domain errors to HTTP status codes
func (h *PatternHandler) handleError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, patternerrors.ErrConsoleIDRequired),
		errors.Is(err, patternerrors.ErrPhoneRequired):
		h.writeError(ctx, fasthttp.StatusBadRequest, err.Error())
	case errors.Is(err, patternerrors.ErrNoIndex),
		errors.Is(err, patternerrors.ErrBrowserNotFound),
		errors.Is(err, patternerrors.ErrBundleNotFound):
		h.writeError(ctx, fasthttp.StatusNotFound, err.Error())
	case errors.Is(err, patternerrors.ErrChatNotInIndex),
		errors.Is(err, patternerrors.ErrMatchNotInChat),
		errors.Is(err, patternerrors.ErrWrongLevel):
		h.writeError(ctx, fasthttp.StatusConflict, err.Error())
	default:
		h.logger.Error().Err(err).Msg("unexpected error")
		h.writeError(ctx, fasthttp.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes JSON response
func (h *PatternHandler) writeJSON(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes error response
func (h *PatternHandler) writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	json.NewEncoder(ctx).Encode(dto.ErrorResponse{Error: message})
}
