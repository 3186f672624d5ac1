package http

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain/console/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/console/dto"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/console/entities"
	consoleerrors "github.com/arhteh596/granovskicrm-sub001/internal/domain/console/errors"
	"github.com/arhteh596/granovskicrm-sub001/pkg/httputil"
)

// ConsoleHandler handles operator-triggered operation HTTP requests
type ConsoleHandler struct {
	useCase deps.ConsoleService
	logger  zerolog.Logger
}

// NewConsoleHandler creates a new console handler
func NewConsoleHandler(useCase deps.ConsoleService, logger zerolog.Logger) *ConsoleHandler {
	return &ConsoleHandler{
		useCase: useCase,
		logger:  logger.With().Str("handler", "console").Logger(),
	}
}

func (h *ConsoleHandler) phone(ctx *fasthttp.RequestCtx) string {
	phone, _ := ctx.UserValue("phone").(string)
	return phone
}

// Profile handles POST /api/v1/telegram/katka/{phone}/profile
func (h *ConsoleHandler) Profile(ctx *fasthttp.RequestCtx) {
	res, err := h.useCase.Profile(ctx, httputil.ConsoleID(ctx), h.phone(ctx))
	h.writeResult(ctx, res, err)
}

// ExportContacts handles POST /api/v1/telegram/katka/{phone}/export-contacts
func (h *ConsoleHandler) ExportContacts(ctx *fasthttp.RequestCtx) {
	res, err := h.useCase.ExportContacts(ctx, httputil.ConsoleID(ctx), h.phone(ctx), h.force(ctx))
	h.writeResult(ctx, res, err)
}

// ExportChats handles POST /api/v1/telegram/katka/{phone}/export-chats
func (h *ConsoleHandler) ExportChats(ctx *fasthttp.RequestCtx) {
	res, err := h.useCase.ExportChats(ctx, httputil.ConsoleID(ctx), h.phone(ctx), h.force(ctx))
	h.writeResult(ctx, res, err)
}

// ExportSavedMessages handles POST /api/v1/telegram/katka/{phone}/export-saved-messages
func (h *ConsoleHandler) ExportSavedMessages(ctx *fasthttp.RequestCtx) {
	res, err := h.useCase.ExportSavedMessages(ctx, httputil.ConsoleID(ctx), h.phone(ctx), h.force(ctx))
	h.writeResult(ctx, res, err)
}

// ExportDialog handles POST /api/v1/telegram/katka/{phone}/export-dialog
func (h *ConsoleHandler) ExportDialog(ctx *fasthttp.RequestCtx) {
	var req dto.ExportDialogRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.useCase.ExportDialog(ctx, httputil.ConsoleID(ctx), h.phone(ctx), req.Peer)
	h.writeResult(ctx, res, err)
}

// ExportContactsWithPhotos handles POST /api/v1/telegram/katka/{phone}/export-contacts-photos
func (h *ConsoleHandler) ExportContactsWithPhotos(ctx *fasthttp.RequestCtx) {
	res, err := h.useCase.ExportContactsWithPhotos(ctx, httputil.ConsoleID(ctx), h.phone(ctx), h.force(ctx))
	h.writeResult(ctx, res, err)
}

// FetchAvatar handles POST /api/v1/telegram/katka/{phone}/avatar
func (h *ConsoleHandler) FetchAvatar(ctx *fasthttp.RequestCtx) {
	res, err := h.useCase.FetchAvatar(ctx, httputil.ConsoleID(ctx), h.phone(ctx), h.force(ctx))
	h.writeResult(ctx, res, err)
}

// ScanBalances handles POST /api/v1/telegram/katka/{phone}/scan-balances
func (h *ConsoleHandler) ScanBalances(ctx *fasthttp.RequestCtx) {
	res, err := h.useCase.ScanBalances(ctx, httputil.ConsoleID(ctx), h.phone(ctx), h.force(ctx))
	h.writeResult(ctx, res, err)
}

// TwoFAStatus handles GET /api/v1/telegram/katka/{phone}/2fa-status
func (h *ConsoleHandler) TwoFAStatus(ctx *fasthttp.RequestCtx) {
	res, err := h.useCase.TwoFAStatus(ctx, httputil.ConsoleID(ctx), h.phone(ctx))
	h.writeResult(ctx, res, err)
}

// UpdatePassword handles POST /api/v1/telegram/katka/{phone}/update-password
func (h *ConsoleHandler) UpdatePassword(ctx *fasthttp.RequestCtx) {
	var req dto.UpdatePasswordRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.useCase.UpdatePassword(ctx, httputil.ConsoleID(ctx), h.phone(ctx), req.CurrentPassword, req.NewPassword, req.Hint)
	h.writeResult(ctx, res, err)
}

// SetOrUpdate2FAEmail handles POST /api/v1/telegram/katka/{phone}/set-2fa-email
func (h *ConsoleHandler) SetOrUpdate2FAEmail(ctx *fasthttp.RequestCtx) {
	var req dto.EmailRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.useCase.SetOrUpdate2FAEmail(ctx, httputil.ConsoleID(ctx), h.phone(ctx), req.Email)
	h.writeResult(ctx, res, err)
}

// LoginEmailStatus handles GET /api/v1/telegram/katka/{phone}/login-email-status
func (h *ConsoleHandler) LoginEmailStatus(ctx *fasthttp.RequestCtx) {
	res, err := h.useCase.LoginEmailStatus(ctx, httputil.ConsoleID(ctx), h.phone(ctx))
	h.writeResult(ctx, res, err)
}

// SendLoginEmailCode handles POST /api/v1/telegram/katka/{phone}/send-login-email-code
func (h *ConsoleHandler) SendLoginEmailCode(ctx *fasthttp.RequestCtx) {
	var req dto.EmailRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.useCase.SendLoginEmailCode(ctx, httputil.ConsoleID(ctx), h.phone(ctx), req.Email)
	h.writeResult(ctx, res, err)
}

// VerifyLoginEmail handles POST /api/v1/telegram/katka/{phone}/verify-login-email
func (h *ConsoleHandler) VerifyLoginEmail(ctx *fasthttp.RequestCtx) {
	var req dto.CodeRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.useCase.VerifyLoginEmail(ctx, httputil.ConsoleID(ctx), h.phone(ctx), req.Code)
	h.writeResult(ctx, res, err)
}

// AutoRotateLoginEmail handles POST /api/v1/telegram/katka/{phone}/rotate-login-email
func (h *ConsoleHandler) AutoRotateLoginEmail(ctx *fasthttp.RequestCtx) {
	res, err := h.useCase.AutoRotateLoginEmail(ctx, httputil.ConsoleID(ctx), h.phone(ctx))
	h.writeResult(ctx, res, err)
}

// TerminateOtherSessions handles POST /api/v1/telegram/katka/{phone}/terminate-other-sessions
func (h *ConsoleHandler) TerminateOtherSessions(ctx *fasthttp.RequestCtx) {
	res, err := h.useCase.TerminateOtherSessions(ctx, httputil.ConsoleID(ctx), h.phone(ctx))
	h.writeResult(ctx, res, err)
}

// AutomateServiceChat handles POST /api/v1/telegram/katka/{phone}/automate-777000
func (h *ConsoleHandler) AutomateServiceChat(ctx *fasthttp.RequestCtx) {
	res, err := h.useCase.AutomateServiceChat(ctx, httputil.ConsoleID(ctx), h.phone(ctx))
	h.writeResult(ctx, res, err)
}

// LastExports handles GET /api/v1/telegram/katka/{phone}/last-exports
func (h *ConsoleHandler) LastExports(ctx *fasthttp.RequestCtx) {
	files, err := h.useCase.LastExports(ctx, h.phone(ctx))
	if err != nil {
		h.handleError(ctx, err)
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, files)
}

// DownloadExport handles GET /api/v1/telegram/katka/{phone}/exports/{kind}/{name}
func (h *ConsoleHandler) DownloadExport(ctx *fasthttp.RequestCtx) {
	kind, _ := ctx.UserValue("kind").(string)
	name, _ := ctx.UserValue("name").(string)

	data, contentType, err := h.useCase.DownloadExport(ctx, h.phone(ctx), kind, name)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	ctx.SetContentType(contentType)
	ctx.Response.Header.Set("Content-Disposition", `attachment; filename="`+name+`"`)
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(data)
}

// force reads the optional cache-bypass flag; an empty body means false
func (h *ConsoleHandler) force(ctx *fasthttp.RequestCtx) bool {
	if len(ctx.PostBody()) == 0 {
		return false
	}
	var req dto.ForceRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		return false
	}
	return req.Force
}

// writeResult writes the uniform operation outcome. Busy triggers get
// 409 so the console can tell a drop from a completed run.
func (h *ConsoleHandler) writeResult(ctx *fasthttp.RequestCtx, res *entities.OperationResult, err error) {
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

// handleError maps request validation errors to HTTP status codes
func (h *ConsoleHandler) handleError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, consoleerrors.ErrConsoleIDRequired):
		h.writeError(ctx, fasthttp.StatusBadRequest, "X-Console-ID header is required")
	case errors.Is(err, consoleerrors.ErrPhoneRequired),
		errors.Is(err, consoleerrors.ErrPeerRequired),
		errors.Is(err, consoleerrors.ErrEmailRequired),
		errors.Is(err, consoleerrors.ErrCodeRequired),
		errors.Is(err, consoleerrors.ErrPasswordRequired):
		h.writeError(ctx, fasthttp.StatusBadRequest, err.Error())
	case errors.Is(err, consoleerrors.ErrExportNotFound):
		h.writeError(ctx, fasthttp.StatusNotFound, "export file not found")
	default:
		h.logger.Error().Err(err).Msg("unexpected error")
		h.writeError(ctx, fasthttp.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes JSON response
func (h *ConsoleHandler) writeJSON(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes error response
func (h *ConsoleHandler) writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	json.NewEncoder(ctx).Encode(dto.ErrorResponse{Error: message})
}
