package http

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/authflow/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/authflow/dto"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/authflow/entities"
	flowerrors "github.com/arhteh596/granovskicrm-sub001/internal/domain/authflow/errors"
)

// AuthFlowHandler handles the interactive sign-in HTTP requests
type AuthFlowHandler struct {
	useCase deps.AuthFlowService
	logger  zerolog.Logger
}

// NewAuthFlowHandler creates a new auth flow handler
func NewAuthFlowHandler(useCase deps.AuthFlowService, logger zerolog.Logger) *AuthFlowHandler {
	return &AuthFlowHandler{
		useCase: useCase,
		logger:  logger.With().Str("handler", "authflow").Logger(),
	}
}

// CheckConnection handles GET /api/v1/telegram/check-connection
func (h *AuthFlowHandler) CheckConnection(ctx *fasthttp.RequestCtx) {
	if err := h.useCase.CheckConnection(ctx); err != nil {
		h.handleError(ctx, err)
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, dto.StatusResponse{Status: "connected"})
}

// SendCode handles POST /api/v1/telegram/send-code
func (h *AuthFlowHandler) SendCode(ctx *fasthttp.RequestCtx) {
	var req dto.PhoneRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.useCase.SendCode(ctx, req.PhoneNumber)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, sendCodeResponse(res))
}

// ResendCode handles POST /api/v1/telegram/resend-phone-code
func (h *AuthFlowHandler) ResendCode(ctx *fasthttp.RequestCtx) {
	var req dto.ResendCodeRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.useCase.ResendCode(ctx, req.PhoneNumber, req.ForceSMS)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, sendCodeResponse(res))
}

// VerifyCode handles POST /api/v1/telegram/verify-code
func (h *AuthFlowHandler) VerifyCode(ctx *fasthttp.RequestCtx) {
	var req dto.VerifyCodeRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.useCase.VerifyCode(ctx, req.PhoneNumber, req.Code)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, dto.VerifyCodeResponse{
		Authenticated:    res.Authenticated,
		RequiresPassword: res.RequiresPassword,
		PasswordHint:     res.PasswordHint,
		User:             userPayload(res.User),
	})
}

// VerifyPassword handles POST /api/v1/telegram/verify-password
func (h *AuthFlowHandler) VerifyPassword(ctx *fasthttp.RequestCtx) {
	var req dto.VerifyPasswordRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.useCase.VerifyPassword(ctx, req.PhoneNumber, req.Password)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, dto.VerifyPasswordResponse{
		Authenticated: res.Authenticated,
		User:          userPayload(res.User),
	})
}

// SendEmailCode handles POST /api/v1/telegram/send-email-code
func (h *AuthFlowHandler) SendEmailCode(ctx *fasthttp.RequestCtx) {
	var req dto.SendEmailCodeRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.useCase.SendEmailCode(ctx, req.PhoneNumber, req.Email)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, dto.SendEmailCodeResponse{
		EmailPattern: res.EmailPattern,
		CodeLength:   res.CodeLength,
	})
}

// ResendEmailCode handles POST /api/v1/telegram/resend-email-code
func (h *AuthFlowHandler) ResendEmailCode(ctx *fasthttp.RequestCtx) {
	var req dto.PhoneRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.useCase.ResendEmailCode(ctx, req.PhoneNumber)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, dto.SendEmailCodeResponse{
		EmailPattern: res.EmailPattern,
		CodeLength:   res.CodeLength,
	})
}

// VerifyEmailCode handles POST /api/v1/telegram/verify-email-code
func (h *AuthFlowHandler) VerifyEmailCode(ctx *fasthttp.RequestCtx) {
	var req dto.VerifyCodeRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.useCase.VerifyEmailCode(ctx, req.PhoneNumber, req.Code)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, sendCodeResponse(res))
}

// ResetTwoFA handles POST /api/v1/telegram/reset-2fa
func (h *AuthFlowHandler) ResetTwoFA(ctx *fasthttp.RequestCtx) {
	var req dto.PhoneRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.useCase.RequestResetCode(ctx, req.PhoneNumber)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, dto.ResetCodeResponse{EmailPattern: res.EmailPattern})
}

// ChangePassword handles POST /api/v1/telegram/change-2fa-password
func (h *AuthFlowHandler) ChangePassword(ctx *fasthttp.RequestCtx) {
	var req dto.ChangePasswordRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.useCase.ChangePassword(ctx, req.PhoneNumber, req.Code, req.NewPassword); err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, dto.StatusResponse{Status: "password_changed"})
}

// Cancel handles DELETE /api/v1/telegram/auth-flow
func (h *AuthFlowHandler) Cancel(ctx *fasthttp.RequestCtx) {
	var req dto.PhoneRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.useCase.Cancel(ctx, req.PhoneNumber); err != nil {
		h.handleError(ctx, err)
		return
	}

	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func sendCodeResponse(res *entities.SendCodeResult) dto.SendCodeResponse {
	return dto.SendCodeResponse{
		PhoneNumber:     res.PhoneNumber,
		Step:            string(res.Step),
		CodeStage:       string(res.CodeStage),
		SentTo:          res.SentTo,
		CodeLength:      res.CodeLength,
		Cooldown:        res.Cooldown,
		NeedsEmailSetup: res.NeedsEmailSetup,
		EmailPattern:    res.EmailPattern,
	}
}

func userPayload(u *domain.AccountInfo) *dto.UserPayload {
	if u == nil {
		return nil
	}
	return &dto.UserPayload{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
	}
}

// handleError maps flow and gateway errors to HTTP status codes
func (h *AuthFlowHandler) handleError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, flowerrors.ErrFlowNotFound):
		h.writeError(ctx, fasthttp.StatusNotFound, "auth flow not found")
	case errors.Is(err, flowerrors.ErrFlowExpired):
		h.writeError(ctx, fasthttp.StatusGone, "auth flow expired")
	case errors.Is(err, flowerrors.ErrWrongStep):
		h.writeError(ctx, fasthttp.StatusConflict, "operation not valid at this step")
	case errors.Is(err, flowerrors.ErrFlowBusy):
		h.writeError(ctx, fasthttp.StatusConflict, "another operation is in progress")
	case errors.Is(err, flowerrors.ErrResendCooldown):
		h.writeError(ctx, fasthttp.StatusTooManyRequests, "resend cooldown has not elapsed")
	case errors.Is(err, flowerrors.ErrPhoneRequired),
		errors.Is(err, flowerrors.ErrCodeRequired),
		errors.Is(err, flowerrors.ErrPasswordRequired),
		errors.Is(err, flowerrors.ErrEmailRequired):
		h.writeError(ctx, fasthttp.StatusBadRequest, err.Error())
	default:
		h.handleRemoteError(ctx, err)
	}
}

func (h *AuthFlowHandler) handleRemoteError(ctx *fasthttp.RequestCtx, err error) {
	hint := domain.HintOf(err)
	resp := dto.ErrorResponse{Hint: string(hint)}

	var status int
	switch hint {
	case domain.HintInvalidPhone:
		status, resp.Error = fasthttp.StatusBadRequest, "phone number rejected"
	case domain.HintInvalidCode:
		status, resp.Error = fasthttp.StatusBadRequest, "code rejected"
	case domain.HintExpiredCode:
		status, resp.Error = fasthttp.StatusGone, "code expired"
	case domain.HintWrongPassword:
		status, resp.Error = fasthttp.StatusUnauthorized, "wrong password"
	case domain.HintRateLimited:
		status, resp.Error = fasthttp.StatusTooManyRequests, "rate limited"
		resp.RetryAfter = int(domain.RetryAfterOf(err) / time.Second)
	case domain.HintSessionUnauthorized:
		status, resp.Error = fasthttp.StatusUnauthorized, "session unauthorized"
	default:
		h.logger.Error().Err(err).Msg("unexpected error")
		status, resp.Error = fasthttp.StatusBadGateway, "telegram unavailable"
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	json.NewEncoder(ctx).Encode(resp)
}

// writeJSON writes JSON response
func (h *AuthFlowHandler) writeJSON(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes error response
func (h *AuthFlowHandler) writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	json.NewEncoder(ctx).Encode(dto.ErrorResponse{Error: message})
}
