package http

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain/session/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/session/dto"
	sessionerrors "github.com/arhteh596/granovskicrm-sub001/internal/domain/session/errors"
)

// SessionHandler handles session record HTTP requests
type SessionHandler struct {
	useCase deps.SessionService
	logger  zerolog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(useCase deps.SessionService, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		useCase: useCase,
		logger:  logger.With().Str("handler", "session").Logger(),
	}
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(ctx *fasthttp.RequestCtx) {
	records, err := h.useCase.List(ctx)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	resp := dto.SessionListResponse{
		Sessions: make([]dto.SessionResponse, len(records)),
		Total:    len(records),
	}
	for i := range records {
		resp.Sessions[i] = dto.FromRecord(&records[i])
	}

	h.writeJSON(ctx, fasthttp.StatusOK, resp)
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(ctx *fasthttp.RequestCtx) {
	id, ok := h.sessionID(ctx)
	if !ok {
		return
	}

	record, err := h.useCase.Get(ctx, id)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, dto.FromRecord(record))
}

// Delete handles DELETE /api/v1/sessions/{id}
func (h *SessionHandler) Delete(ctx *fasthttp.RequestCtx) {
	id, ok := h.sessionID(ctx)
	if !ok {
		return
	}

	if err := h.useCase.Delete(ctx, id); err != nil {
		h.handleError(ctx, err)
		return
	}

	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// History handles GET /api/v1/sessions/{id}/history
func (h *SessionHandler) History(ctx *fasthttp.RequestCtx) {
	id, ok := h.sessionID(ctx)
	if !ok {
		return
	}

	entries, err := h.useCase.History(ctx, id)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, dto.HistoryResponse{History: entries})
}

// Metrics handles GET /api/v1/telegram/katka/{phone}/metrics
func (h *SessionHandler) Metrics(ctx *fasthttp.RequestCtx) {
	phone, _ := ctx.UserValue("phone").(string)

	snap, err := h.useCase.Metrics(ctx, phone)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, snap)
}

// OpenLogTail handles POST /api/v1/telegram/katka/{phone}/session-log
func (h *SessionHandler) OpenLogTail(ctx *fasthttp.RequestCtx) {
	phone, _ := ctx.UserValue("phone").(string)

	id, err := h.useCase.OpenLogTail(ctx, phone)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, dto.OpenLogTailResponse{SubscriptionID: id})
}

// ReadLogTail handles GET /api/v1/telegram/katka/session-log/{subscription_id}
func (h *SessionHandler) ReadLogTail(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("subscription_id").(string)

	chunk, err := h.useCase.ReadLogTail(ctx, id)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, chunk)
}

// CloseLogTail handles DELETE /api/v1/telegram/katka/session-log/{subscription_id}
func (h *SessionHandler) CloseLogTail(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("subscription_id").(string)

	if err := h.useCase.CloseLogTail(ctx, id); err != nil {
		h.handleError(ctx, err)
		return
	}

	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (h *SessionHandler) sessionID(ctx *fasthttp.RequestCtx) (uint, bool) {
	raw, _ := ctx.UserValue("id").(string)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid session id")
		return 0, false
	}
	return uint(id), true
}

// handleError maps domain errors to HTTP status codes
func (h *SessionHandler) handleError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, sessionerrors.ErrSessionNotFound):
		h.writeError(ctx, fasthttp.StatusNotFound, "session not found")
	case errors.Is(err, sessionerrors.ErrSubscriptionNotFound):
		h.writeError(ctx, fasthttp.StatusNotFound, "subscription not found")
	case errors.Is(err, sessionerrors.ErrPhoneRequired):
		h.writeError(ctx, fasthttp.StatusBadRequest, "phone number is required")
	case errors.Is(err, sessionerrors.ErrPollerStopped):
		h.writeError(ctx, fasthttp.StatusServiceUnavailable, "service is shutting down")
	default:
		h.logger.Error().Err(err).Msg("unexpected error")
		h.writeError(ctx, fasthttp.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes JSON response
func (h *SessionHandler) writeJSON(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes error response
func (h *SessionHandler) writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	json.NewEncoder(ctx).Encode(dto.ErrorResponse{Error: message})
}
