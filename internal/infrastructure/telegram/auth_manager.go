package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/arhteh596/granovskicrm-sub001/config"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/metrics"
)

// pendingFlow is one in-progress sign-in: a live client plus the state
// Telegram handed back along the way
type pendingFlow struct {
	id     string
	phone  string
	handle *clientHandle

	mu        sync.Mutex
	codeHash  string
	createdAt time.Time
	expiresAt time.Time
}

func (f *pendingFlow) setCodeHash(hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codeHash = hash
}

func (f *pendingFlow) getCodeHash() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codeHash
}

func (f *pendingFlow) expired() bool {
	return time.Now().After(f.expiresAt)
}

// AuthFlowManager implements domain.AuthGateway. Each flow owns a live
// MTProto client connected over the phone's stored session, so a completed
// sign-in lands its session blob in the database without extra plumbing.
type AuthFlowManager struct {
	db       *gorm.DB
	apiID    int
	apiHash  string
	ttl      time.Duration
	maxFlows int
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	mu    sync.Mutex
	flows map[string]*pendingFlow

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewAuthFlowManager creates the auth flow manager and starts its cleanup loop
func NewAuthFlowManager(db *gorm.DB, telegramCfg *config.TelegramConfig, consoleCfg *config.ConsoleConfig, logger zerolog.Logger) *AuthFlowManager {
	m := &AuthFlowManager{
		db:          db,
		apiID:       telegramCfg.APIID,
		apiHash:     telegramCfg.APIHash,
		ttl:         consoleCfg.AuthFlowTTL,
		maxFlows:    consoleCfg.MaxAuthFlows,
		metrics:     metrics.GetDefaultMetrics(),
		logger:      logger.With().Str("component", "auth_flow_manager").Logger(),
		flows:       make(map[string]*pendingFlow),
		stopCleanup: make(chan struct{}),
	}

	go m.runCleanup()

	return m
}

func (m *AuthFlowManager) runCleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupExpired()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *AuthFlowManager) cleanupExpired() {
	m.mu.Lock()
	var expired []*pendingFlow
	for id, f := range m.flows {
		if f.expired() || !f.handle.Alive() {
			expired = append(expired, f)
			delete(m.flows, id)
		}
	}
	count := len(m.flows)
	m.mu.Unlock()

	for _, f := range expired {
		f.handle.Close()
		m.logger.Debug().Str("flow_id", f.id).Msg("expired auth flow cleaned up")
	}
	m.metrics.UpdateActiveAuthFlows(count)
}

// Stop halts cleanup and releases every pending flow
func (m *AuthFlowManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
	})

	m.mu.Lock()
	flows := make([]*pendingFlow, 0, len(m.flows))
	for _, f := range m.flows {
		flows = append(flows, f)
	}
	m.flows = make(map[string]*pendingFlow)
	m.mu.Unlock()

	for _, f := range flows {
		f.handle.Close()
	}
}

func (m *AuthFlowManager) flow(flowID string) (*pendingFlow, error) {
	m.mu.Lock()
	f, ok := m.flows[flowID]
	m.mu.Unlock()

	if !ok {
		return nil, domain.ErrFlowNotFound
	}
	if f.expired() || !f.handle.Alive() {
		m.remove(flowID)
		return nil, domain.ErrFlowNotFound
	}
	return f, nil
}

func (m *AuthFlowManager) remove(flowID string) {
	m.mu.Lock()
	f, ok := m.flows[flowID]
	delete(m.flows, flowID)
	count := len(m.flows)
	m.mu.Unlock()

	if ok {
		f.handle.Close()
	}
	m.metrics.UpdateActiveAuthFlows(count)
}

// CheckConnection verifies Telegram is reachable with an ephemeral client
func (m *AuthFlowManager) CheckConnection(ctx context.Context) error {
	client := telegram.NewClient(m.apiID, m.apiHash, telegram.Options{})

	err := client.Run(ctx, func(ctx context.Context) error {
		_, err := client.API().HelpGetConfig(ctx)
		return err
	})
	if err != nil {
		return mapRemoteError(err)
	}
	return nil
}

// StartFlow connects a client for phone and registers the flow
func (m *AuthFlowManager) StartFlow(ctx context.Context, phone string) (string, error) {
	m.mu.Lock()
	if len(m.flows) >= m.maxFlows {
		m.mu.Unlock()
		return "", fmt.Errorf("too many concurrent auth flows")
	}
	m.mu.Unlock()

	storage, err := NewPostgresSessionStorage(m.db, phone)
	if err != nil {
		return "", err
	}

	flowLogger := m.logger.With().Str("phone", maskPhoneNumber(phone)).Logger()
	handle, err := startClient(ctx, m.apiID, m.apiHash, storage, flowLogger)
	if err != nil {
		return "", mapRemoteError(err)
	}

	now := time.Now()
	f := &pendingFlow{
		id:        uuid.New().String(),
		phone:     phone,
		handle:    handle,
		createdAt: now,
		expiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.flows[f.id] = f
	count := len(m.flows)
	m.mu.Unlock()
	m.metrics.UpdateActiveAuthFlows(count)

	flowLogger.Info().Str("flow_id", f.id).Msg("auth flow started")
	return f.id, nil
}

// FlowPhone returns the phone a flow was started for
func (m *AuthFlowManager) FlowPhone(flowID string) (string, error) {
	f, err := m.flow(flowID)
	if err != nil {
		return "", err
	}
	return f.phone, nil
}

// SendCode requests a login code for the flow's phone
func (m *AuthFlowManager) SendCode(ctx context.Context, flowID string) (*domain.SentCode, error) {
	f, err := m.flow(flowID)
	if err != nil {
		return nil, err
	}

	sent, err := f.handle.client.Auth().SendCode(ctx, f.phone, auth.SendCodeOptions{})
	if err != nil {
		return nil, mapRemoteError(err)
	}

	return m.sentCodeFrom(f, sent)
}

// ResendCode re-requests the login code. Telegram advances to the next
// delivery type on resend, which covers the force-SMS case.
func (m *AuthFlowManager) ResendCode(ctx context.Context, flowID string, forceSMS bool) (*domain.SentCode, error) {
	f, err := m.flow(flowID)
	if err != nil {
		return nil, err
	}

	hash := f.getCodeHash()
	if hash == "" {
		return m.SendCode(ctx, flowID)
	}

	sent, err := f.handle.api.AuthResendCode(ctx, &tg.AuthResendCodeRequest{
		PhoneNumber:   f.phone,
		PhoneCodeHash: hash,
	})
	if err != nil {
		return nil, mapRemoteError(err)
	}

	return m.sentCodeFrom(f, sent)
}

// sentCodeFrom translates Telegram's sent-code answer, remembering the hash
func (m *AuthFlowManager) sentCodeFrom(f *pendingFlow, sent tg.AuthSentCodeClass) (*domain.SentCode, error) {
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		// AuthSentCodeSuccess: the session is already signed in
		return nil, domain.NewRemoteError(domain.HintNone, fmt.Errorf("session already authorized"))
	}

	f.setCodeHash(code.PhoneCodeHash)

	sc := &domain.SentCode{
		PhoneCodeHash: code.PhoneCodeHash,
		Timeout:       code.Timeout,
	}

	switch t := code.Type.(type) {
	case *tg.AuthSentCodeTypeApp:
		sc.SentTo = "app"
		sc.CodeLength = t.Length
	case *tg.AuthSentCodeTypeSMS:
		sc.SentTo = "sms"
		sc.CodeLength = t.Length
	case *tg.AuthSentCodeTypeCall:
		sc.SentTo = "call"
		sc.CodeLength = t.Length
	case *tg.AuthSentCodeTypeEmailCode:
		sc.SentTo = t.EmailPattern
		sc.EmailPattern = t.EmailPattern
		sc.CodeLength = t.Length
	case *tg.AuthSentCodeTypeSetUpEmailRequired:
		sc.NeedsEmailSetup = true
	default:
		sc.SentTo = "app"
	}

	return sc, nil
}

// SendEmailCode sends a login-setup verification code to the given email
func (m *AuthFlowManager) SendEmailCode(ctx context.Context, flowID, email string) (*domain.EmailCode, error) {
	f, err := m.flow(flowID)
	if err != nil {
		return nil, err
	}

	res, err := f.handle.api.AccountSendVerifyEmailCode(ctx, &tg.AccountSendVerifyEmailCodeRequest{
		Purpose: &tg.EmailVerifyPurposeLoginSetup{
			PhoneNumber:   f.phone,
			PhoneCodeHash: f.getCodeHash(),
		},
		Email: email,
	})
	if err != nil {
		return nil, mapRemoteError(err)
	}

	return &domain.EmailCode{Pattern: res.EmailPattern, Length: res.Length}, nil
}

// VerifyEmailCode confirms the login email. Telegram responds with a fresh
// login code, which the flow adopts immediately.
func (m *AuthFlowManager) VerifyEmailCode(ctx context.Context, flowID, code string) (*domain.SentCode, error) {
	f, err := m.flow(flowID)
	if err != nil {
		return nil, err
	}

	res, err := f.handle.api.AccountVerifyEmail(ctx, &tg.AccountVerifyEmailRequest{
		Purpose: &tg.EmailVerifyPurposeLoginSetup{
			PhoneNumber:   f.phone,
			PhoneCodeHash: f.getCodeHash(),
		},
		Verification: &tg.EmailVerificationCode{Code: code},
	})
	if err != nil {
		return nil, mapRemoteError(err)
	}

	if login, ok := res.(*tg.AccountEmailVerifiedLogin); ok {
		return m.sentCodeFrom(f, login.SentCode)
	}

	// Verified without an attached code: request one explicitly
	return m.SendCode(ctx, flowID)
}

// SignIn submits the login code
func (m *AuthFlowManager) SignIn(ctx context.Context, flowID, code string) (*domain.SignInResult, error) {
	f, err := m.flow(flowID)
	if err != nil {
		return nil, err
	}

	authorization, err := f.handle.client.Auth().SignIn(ctx, f.phone, code, f.getCodeHash())
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		result := &domain.SignInResult{RequiresPassword: true}
		if pw, pwErr := f.handle.api.AccountGetPassword(ctx); pwErr == nil {
			result.PasswordHint = pw.Hint
		}
		return result, nil
	}
	if err != nil {
		return nil, mapRemoteError(err)
	}

	return &domain.SignInResult{User: userFromAuthorization(authorization, f.phone)}, nil
}

// SignInWithPassword submits the 2FA password
func (m *AuthFlowManager) SignInWithPassword(ctx context.Context, flowID, password string) (*domain.SignInResult, error) {
	f, err := m.flow(flowID)
	if err != nil {
		return nil, err
	}

	authorization, err := f.handle.client.Auth().Password(ctx, password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordInvalid) {
			return nil, domain.NewRemoteError(domain.HintWrongPassword, err)
		}
		return nil, mapRemoteError(err)
	}

	return &domain.SignInResult{User: userFromAuthorization(authorization, f.phone)}, nil
}

// RequestPasswordRecovery asks Telegram to email a recovery code
func (m *AuthFlowManager) RequestPasswordRecovery(ctx context.Context, flowID string) (string, error) {
	f, err := m.flow(flowID)
	if err != nil {
		return "", err
	}

	recovery, err := f.handle.api.AuthRequestPasswordRecovery(ctx)
	if err != nil {
		return "", mapRemoteError(err)
	}

	return recovery.EmailPattern, nil
}

// RecoverPassword validates the recovery code and replaces the password.
// Recovering signs the flow's client in; the console still walks the
// operator back through password entry for the session takeover itself.
func (m *AuthFlowManager) RecoverPassword(ctx context.Context, flowID, code, newPassword string) error {
	f, err := m.flow(flowID)
	if err != nil {
		return err
	}

	valid, err := f.handle.api.AuthCheckRecoveryPassword(ctx, code)
	if err != nil {
		return mapRemoteError(err)
	}
	if !valid {
		return domain.NewRemoteError(domain.HintInvalidCode, fmt.Errorf("recovery code rejected"))
	}

	if _, err := f.handle.api.AuthRecoverPassword(ctx, &tg.AuthRecoverPasswordRequest{Code: code}); err != nil {
		return mapRemoteError(err)
	}

	if newPassword != "" {
		err := f.handle.client.Auth().UpdatePassword(ctx, newPassword, auth.UpdatePasswordOptions{})
		if err != nil {
			return mapRemoteError(err)
		}
	}

	return nil
}

// FinishFlow releases the flow's client. The session blob is already
// persisted by the client's session storage.
func (m *AuthFlowManager) FinishFlow(_ context.Context, flowID string) error {
	if _, err := m.flow(flowID); err != nil {
		return err
	}
	m.remove(flowID)
	return nil
}

// CancelFlow releases the flow's client and discards flow state
func (m *AuthFlowManager) CancelFlow(flowID string) {
	m.remove(flowID)
}

func userFromAuthorization(a *tg.AuthAuthorization, phone string) *domain.AccountInfo {
	info := &domain.AccountInfo{Phone: phone}
	if a == nil {
		return info
	}
	if user, ok := a.User.(*tg.User); ok {
		info.ID = user.ID
		info.Username = user.Username
		info.FirstName = user.FirstName
		info.LastName = user.LastName
		if user.Phone != "" {
			info.Phone = user.Phone
		}
	}
	return info
}

// Ensure AuthFlowManager implements domain.AuthGateway
var _ domain.AuthGateway = (*AuthFlowManager)(nil)
