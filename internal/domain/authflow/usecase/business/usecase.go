package business

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/authflow/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/authflow/entities"
	flowerrors "github.com/arhteh596/granovskicrm-sub001/internal/domain/authflow/errors"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/metrics"
)

const cleanupInterval = time.Minute

// AuthFlowUseCase drives the phone-code-password flow over the Telegram
// auth gateway, one flow per phone number
type AuthFlowUseCase struct {
	gateway  domain.AuthGateway
	accounts domain.AccountGateway
	recorder deps.SessionRecorder
	audit    domain.AuditProducer
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	flowTTL         time.Duration
	defaultCooldown int
	emailRotation   bool

	mu    sync.Mutex
	flows map[string]*entities.Flow

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// Config carries the flow tunables
type Config struct {
	FlowTTL         time.Duration
	DefaultCooldown int
	// EmailRotation enables the best-effort login email rotation fired
	// after a successful sign-in
	EmailRotation bool
}

// NewAuthFlowUseCase creates the auth flow use case and starts its
// expiry sweeper
func NewAuthFlowUseCase(
	gateway domain.AuthGateway,
	accounts domain.AccountGateway,
	recorder deps.SessionRecorder,
	audit domain.AuditProducer,
	cfg Config,
	logger zerolog.Logger,
) *AuthFlowUseCase {
	if cfg.FlowTTL <= 0 {
		cfg.FlowTTL = 10 * time.Minute
	}
	if cfg.DefaultCooldown <= 0 {
		cfg.DefaultCooldown = 60
	}

	uc := &AuthFlowUseCase{
		gateway:         gateway,
		accounts:        accounts,
		recorder:        recorder,
		audit:           audit,
		metrics:         metrics.GetDefaultMetrics(),
		logger:          logger.With().Str("usecase", "authflow").Logger(),
		flowTTL:         cfg.FlowTTL,
		defaultCooldown: cfg.DefaultCooldown,
		emailRotation:   cfg.EmailRotation,
		flows:           make(map[string]*entities.Flow),
		stopCleanup:     make(chan struct{}),
	}
	go uc.runCleanup()
	return uc
}

// Stop halts the expiry sweeper
func (uc *AuthFlowUseCase) Stop() {
	uc.stopOnce.Do(func() { close(uc.stopCleanup) })
}

func (uc *AuthFlowUseCase) runCleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-uc.stopCleanup:
			return
		case <-ticker.C:
			uc.mu.Lock()
			for phone, flow := range uc.flows {
				if flow.IsExpired() && !flow.InFlight() {
					delete(uc.flows, phone)
					uc.gateway.CancelFlow(flow.ID)
					uc.logger.Debug().Str("phone", maskPhone(phone)).Msg("expired auth flow removed")
				}
			}
			uc.mu.Unlock()
		}
	}
}

// NormalizePhone strips everything but digits and prepends "+"
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "+" + b.String()
}

func maskPhone(phone string) string {
	if len(phone) < 5 {
		return "***"
	}
	return phone[:3] + "***" + phone[len(phone)-2:]
}

// acquireFlow returns the flow marked busy for one transition. A second
// trigger for the same phone is refused while a previous transition's
// remote call is still outstanding; every acquire is paired with
// releaseFlow.
func (uc *AuthFlowUseCase) acquireFlow(phone string) (*entities.Flow, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	flow, ok := uc.flows[phone]
	if !ok {
		return nil, flowerrors.ErrFlowNotFound
	}
	if flow.InFlight() {
		return nil, flowerrors.ErrFlowBusy
	}
	if flow.IsExpired() {
		delete(uc.flows, phone)
		uc.gateway.CancelFlow(flow.ID)
		return nil, flowerrors.ErrFlowExpired
	}
	flow.BeginTransition()

	return flow, nil
}

func (uc *AuthFlowUseCase) releaseFlow(flow *entities.Flow) {
	uc.mu.Lock()
	flow.EndTransition()
	uc.mu.Unlock()
}

func (uc *AuthFlowUseCase) removeFlow(phone string) {
	uc.mu.Lock()
	delete(uc.flows, phone)
	uc.mu.Unlock()
}

// CheckConnection verifies Telegram is reachable
func (uc *AuthFlowUseCase) CheckConnection(ctx context.Context) error {
	return uc.gateway.CheckConnection(ctx)
}

// SendCode starts a flow for the phone and requests a login code. An
// existing flow for the same phone is replaced.
func (uc *AuthFlowUseCase) SendCode(ctx context.Context, phone string) (*entities.SendCodeResult, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return nil, flowerrors.ErrPhoneRequired
	}

	uc.mu.Lock()
	if prev, ok := uc.flows[phone]; ok {
		if prev.InFlight() {
			uc.mu.Unlock()
			return nil, flowerrors.ErrFlowBusy
		}
		delete(uc.flows, phone)
		uc.gateway.CancelFlow(prev.ID)
	}
	uc.mu.Unlock()

	flowID, err := uc.gateway.StartFlow(ctx, phone)
	if err != nil {
		uc.metrics.RecordAuthFailure(string(domain.HintOf(err)))
		return nil, err
	}

	sc, err := uc.gateway.SendCode(ctx, flowID)
	if err != nil {
		uc.gateway.CancelFlow(flowID)
		uc.metrics.RecordAuthFailure(string(domain.HintOf(err)))
		return nil, err
	}

	now := time.Now()
	flow := &entities.Flow{
		ID:          flowID,
		PhoneNumber: phone,
		CreatedAt:   now,
		ExpiresAt:   now.Add(uc.flowTTL),
	}
	flow.ApplySentCode(sc, uc.defaultCooldown)

	uc.mu.Lock()
	uc.flows[phone] = flow
	uc.mu.Unlock()

	uc.metrics.RecordAuthTransition("send_code")
	uc.logger.Info().
		Str("phone", maskPhone(phone)).
		Str("sent_to", flow.SentTo).
		Bool("email_setup", sc.NeedsEmailSetup).
		Msg("login code requested")

	return sendCodeResult(flow, sc.NeedsEmailSetup), nil
}

func sendCodeResult(flow *entities.Flow, needsEmailSetup bool) *entities.SendCodeResult {
	return &entities.SendCodeResult{
		PhoneNumber:     flow.PhoneNumber,
		Step:            flow.Step,
		CodeStage:       flow.CodeStage,
		SentTo:          flow.SentTo,
		CodeLength:      flow.CodeLength,
		Cooldown:        flow.CooldownLeft(),
		NeedsEmailSetup: needsEmailSetup,
		EmailPattern:    flow.EmailPattern,
	}
}

// ResendCode re-requests the login code. Refused locally while the
// cooldown is positive.
func (uc *AuthFlowUseCase) ResendCode(ctx context.Context, phone string, forceSMS bool) (*entities.SendCodeResult, error) {
	flow, err := uc.acquireFlow(NormalizePhone(phone))
	if err != nil {
		return nil, err
	}
	defer uc.releaseFlow(flow)
	if flow.Step != entities.StepCode {
		return nil, flowerrors.ErrWrongStep
	}
	if flow.CooldownLeft() > 0 {
		return nil, flowerrors.ErrResendCooldown
	}

	sc, err := uc.gateway.ResendCode(ctx, flow.ID, forceSMS)
	if err != nil {
		uc.metrics.RecordAuthFailure(string(domain.HintOf(err)))
		return nil, err
	}

	flow.ApplySentCode(sc, uc.defaultCooldown)
	uc.metrics.RecordAuthTransition("resend_code")

	return sendCodeResult(flow, sc.NeedsEmailSetup), nil
}

// SendEmailCode submits the login email address during email setup
func (uc *AuthFlowUseCase) SendEmailCode(ctx context.Context, phone, email string) (*entities.EmailCodeResult, error) {
	if strings.TrimSpace(email) == "" {
		return nil, flowerrors.ErrEmailRequired
	}

	flow, err := uc.acquireFlow(NormalizePhone(phone))
	if err != nil {
		return nil, err
	}
	defer uc.releaseFlow(flow)
	if flow.Step != entities.StepCode || flow.CodeStage != entities.CodeStageEmailVerification {
		return nil, flowerrors.ErrWrongStep
	}

	ec, err := uc.gateway.SendEmailCode(ctx, flow.ID, email)
	if err != nil {
		uc.metrics.RecordAuthFailure(string(domain.HintOf(err)))
		return nil, err
	}

	flow.EmailPattern = ec.Pattern
	flow.PendingEmail = email
	uc.metrics.RecordAuthTransition("send_email_code")

	return &entities.EmailCodeResult{
		EmailPattern: ec.Pattern,
		CodeLength:   ec.Length,
	}, nil
}

// ResendEmailCode re-sends the verification code to the address submitted
// earlier in the email setup stage
func (uc *AuthFlowUseCase) ResendEmailCode(ctx context.Context, phone string) (*entities.EmailCodeResult, error) {
	flow, err := uc.acquireFlow(NormalizePhone(phone))
	if err != nil {
		return nil, err
	}
	defer uc.releaseFlow(flow)
	if flow.Step != entities.StepCode || flow.CodeStage != entities.CodeStageEmailVerification {
		return nil, flowerrors.ErrWrongStep
	}
	if flow.PendingEmail == "" {
		return nil, flowerrors.ErrEmailRequired
	}

	ec, err := uc.gateway.SendEmailCode(ctx, flow.ID, flow.PendingEmail)
	if err != nil {
		uc.metrics.RecordAuthFailure(string(domain.HintOf(err)))
		return nil, err
	}

	flow.EmailPattern = ec.Pattern
	uc.metrics.RecordAuthTransition("resend_email_code")

	return &entities.EmailCodeResult{
		EmailPattern: ec.Pattern,
		CodeLength:   ec.Length,
	}, nil
}

// VerifyEmailCode confirms the email verification code. On success the
// login code request is repeated and the flow returns to normal code
// entry.
func (uc *AuthFlowUseCase) VerifyEmailCode(ctx context.Context, phone, code string) (*entities.SendCodeResult, error) {
	if code == "" {
		return nil, flowerrors.ErrCodeRequired
	}

	flow, err := uc.acquireFlow(NormalizePhone(phone))
	if err != nil {
		return nil, err
	}
	defer uc.releaseFlow(flow)
	if flow.Step != entities.StepCode || flow.CodeStage != entities.CodeStageEmailVerification {
		return nil, flowerrors.ErrWrongStep
	}

	sc, err := uc.gateway.VerifyEmailCode(ctx, flow.ID, code)
	if err != nil {
		uc.metrics.RecordAuthFailure(string(domain.HintOf(err)))
		return nil, err
	}

	flow.ApplySentCode(sc, uc.defaultCooldown)
	flow.CodeStage = entities.CodeStageNormal
	uc.metrics.RecordAuthTransition("verify_email_code")

	return sendCodeResult(flow, false), nil
}

// VerifyCode submits the login code. When the account carries a 2FA
// password the flow moves to the password step instead of finishing.
func (uc *AuthFlowUseCase) VerifyCode(ctx context.Context, phone, code string) (*entities.VerifyCodeResult, error) {
	if code == "" {
		return nil, flowerrors.ErrCodeRequired
	}

	flow, err := uc.acquireFlow(NormalizePhone(phone))
	if err != nil {
		return nil, err
	}
	defer uc.releaseFlow(flow)
	if flow.Step != entities.StepCode {
		return nil, flowerrors.ErrWrongStep
	}

	res, err := uc.gateway.SignIn(ctx, flow.ID, code)
	if err != nil {
		uc.metrics.RecordAuthFailure(string(domain.HintOf(err)))
		return nil, err
	}

	if res.RequiresPassword {
		flow.Step = entities.StepPassword
		flow.PasswordStage = entities.PasswordStageEnter
		flow.PasswordHint = res.PasswordHint
		uc.metrics.RecordAuthTransition("password_required")
		return &entities.VerifyCodeResult{
			RequiresPassword: true,
			PasswordHint:     res.PasswordHint,
		}, nil
	}

	uc.finishFlow(ctx, flow, res.User)
	return &entities.VerifyCodeResult{Authenticated: true, User: res.User}, nil
}

// VerifyPassword submits the 2FA password
func (uc *AuthFlowUseCase) VerifyPassword(ctx context.Context, phone, password string) (*entities.PasswordResult, error) {
	if password == "" {
		return nil, flowerrors.ErrPasswordRequired
	}

	flow, err := uc.acquireFlow(NormalizePhone(phone))
	if err != nil {
		return nil, err
	}
	defer uc.releaseFlow(flow)
	if flow.Step != entities.StepPassword {
		return nil, flowerrors.ErrWrongStep
	}

	res, err := uc.gateway.SignInWithPassword(ctx, flow.ID, password)
	if err != nil {
		uc.metrics.RecordAuthFailure(string(domain.HintOf(err)))
		return nil, err
	}

	uc.finishFlow(ctx, flow, res.User)
	return &entities.PasswordResult{Authenticated: true, User: res.User}, nil
}

// RequestResetCode starts 2FA password recovery via the recovery email
func (uc *AuthFlowUseCase) RequestResetCode(ctx context.Context, phone string) (*entities.ResetCodeResult, error) {
	flow, err := uc.acquireFlow(NormalizePhone(phone))
	if err != nil {
		return nil, err
	}
	defer uc.releaseFlow(flow)
	if flow.Step != entities.StepPassword {
		return nil, flowerrors.ErrWrongStep
	}

	pattern, err := uc.gateway.RequestPasswordRecovery(ctx, flow.ID)
	if err != nil {
		uc.metrics.RecordAuthFailure(string(domain.HintOf(err)))
		return nil, err
	}

	flow.PasswordStage = entities.PasswordStageReset
	flow.ResetEmailPattern = pattern
	uc.metrics.RecordAuthTransition("reset_requested")

	return &entities.ResetCodeResult{EmailPattern: pattern}, nil
}

// ChangePassword completes recovery with the emailed code and a new
// password. The flow returns to password entry so the operator signs in
// with the password just set.
func (uc *AuthFlowUseCase) ChangePassword(ctx context.Context, phone, code, newPassword string) error {
	if code == "" {
		return flowerrors.ErrCodeRequired
	}
	if newPassword == "" {
		return flowerrors.ErrPasswordRequired
	}

	flow, err := uc.acquireFlow(NormalizePhone(phone))
	if err != nil {
		return err
	}
	defer uc.releaseFlow(flow)
	if flow.Step != entities.StepPassword || flow.PasswordStage != entities.PasswordStageReset {
		return flowerrors.ErrWrongStep
	}

	if err := uc.gateway.RecoverPassword(ctx, flow.ID, code, newPassword); err != nil {
		uc.metrics.RecordAuthFailure(string(domain.HintOf(err)))
		return err
	}

	flow.PasswordStage = entities.PasswordStageEnter
	flow.ResetEmailPattern = ""
	uc.metrics.RecordAuthTransition("password_changed")
	return nil
}

// Cancel abandons the flow
func (uc *AuthFlowUseCase) Cancel(_ context.Context, phone string) error {
	phone = NormalizePhone(phone)

	uc.mu.Lock()
	flow, ok := uc.flows[phone]
	if ok && flow.InFlight() {
		uc.mu.Unlock()
		return flowerrors.ErrFlowBusy
	}
	if ok {
		delete(uc.flows, phone)
	}
	uc.mu.Unlock()

	if !ok {
		return flowerrors.ErrFlowNotFound
	}
	uc.gateway.CancelFlow(flow.ID)
	uc.logger.Info().Str("phone", maskPhone(phone)).Msg("auth flow cancelled")
	return nil
}

// finishFlow records the authorized session and fires the post-success
// tasks. Rotation runs detached so a slow email change never blocks the
// sign-in response.
func (uc *AuthFlowUseCase) finishFlow(ctx context.Context, flow *entities.Flow, user *domain.AccountInfo) {
	flow.Step = entities.StepSuccess
	if err := uc.gateway.FinishFlow(ctx, flow.ID); err != nil {
		uc.logger.Warn().Err(err).Msg("failed to release auth flow client")
	}
	uc.removeFlow(flow.PhoneNumber)

	if err := uc.recorder.RecordAuthorized(ctx, flow.PhoneNumber, user); err != nil {
		uc.logger.Error().Err(err).Str("phone", maskPhone(flow.PhoneNumber)).Msg("failed to record session")
	}

	if uc.audit != nil {
		if err := uc.audit.SendOperation(ctx, &domain.AuditEvent{
			PhoneNumber: flow.PhoneNumber,
			Operation:   "auth_success",
			Success:     true,
		}); err != nil {
			uc.logger.Warn().Err(err).Msg("failed to publish auth audit event")
		}
	}

	uc.metrics.RecordAuthTransition("success")
	uc.logger.Info().Str("phone", maskPhone(flow.PhoneNumber)).Msg("session authorized")

	if uc.emailRotation {
		phone := flow.PhoneNumber
		go func() {
			rotateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			target, err := uc.accounts.AutoRotateLoginEmail(rotateCtx, phone)
			if err != nil {
				uc.logger.Warn().Err(err).Str("phone", maskPhone(phone)).Msg("login email rotation failed")
				return
			}
			uc.logger.Info().
				Str("phone", maskPhone(phone)).
				Str("target", target).
				Msg("login email rotation started")
		}()
	}
}

// Ensure AuthFlowUseCase implements deps.AuthFlowService
var _ deps.AuthFlowService = (*AuthFlowUseCase)(nil)
