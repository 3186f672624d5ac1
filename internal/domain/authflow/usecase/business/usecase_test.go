package business

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/authflow/entities"
	flowerrors "github.com/arhteh596/granovskicrm-sub001/internal/domain/authflow/errors"
)

// mockAuthGateway is a scriptable domain.AuthGateway for flow tests
type mockAuthGateway struct {
	mu sync.Mutex

	sentCode     *domain.SentCode
	signInResult *domain.SignInResult
	signInErr    error
	passwordErr  error
	recoveryPat  string
	// signInGate, when set, holds SignIn until the channel is closed
	signInGate chan struct{}

	startedPhones []string
	cancelled     []string
	finished      []string
	resendCalls   int
}

func (m *mockAuthGateway) CheckConnection(ctx context.Context) error { return nil }

func (m *mockAuthGateway) StartFlow(ctx context.Context, phone string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startedPhones = append(m.startedPhones, phone)
	return "flow-" + phone, nil
}

func (m *mockAuthGateway) SendCode(ctx context.Context, flowID string) (*domain.SentCode, error) {
	return m.sentCode, nil
}

func (m *mockAuthGateway) ResendCode(ctx context.Context, flowID string, forceSMS bool) (*domain.SentCode, error) {
	m.mu.Lock()
	m.resendCalls++
	m.mu.Unlock()
	return m.sentCode, nil
}

func (m *mockAuthGateway) SendEmailCode(ctx context.Context, flowID, email string) (*domain.EmailCode, error) {
	return &domain.EmailCode{Pattern: "a***@mail.test", Length: 6}, nil
}

func (m *mockAuthGateway) VerifyEmailCode(ctx context.Context, flowID, code string) (*domain.SentCode, error) {
	return &domain.SentCode{SentTo: "app", CodeLength: 5, Timeout: 30}, nil
}

func (m *mockAuthGateway) SignIn(ctx context.Context, flowID, code string) (*domain.SignInResult, error) {
	if m.signInGate != nil {
		<-m.signInGate
	}
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	return m.signInResult, nil
}

func (m *mockAuthGateway) SignInWithPassword(ctx context.Context, flowID, password string) (*domain.SignInResult, error) {
	if m.passwordErr != nil {
		return nil, m.passwordErr
	}
	return m.signInResult, nil
}

func (m *mockAuthGateway) RequestPasswordRecovery(ctx context.Context, flowID string) (string, error) {
	return m.recoveryPat, nil
}

func (m *mockAuthGateway) RecoverPassword(ctx context.Context, flowID, code, newPassword string) error {
	return nil
}

func (m *mockAuthGateway) FlowPhone(flowID string) (string, error) { return "", nil }

func (m *mockAuthGateway) FinishFlow(ctx context.Context, flowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, flowID)
	return nil
}

func (m *mockAuthGateway) CancelFlow(flowID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, flowID)
}

// mockRecorder captures authorized sessions
type mockRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (m *mockRecorder) RecordAuthorized(ctx context.Context, phone string, user *domain.AccountInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, phone)
	return nil
}

func newTestUseCase(gw *mockAuthGateway, rec *mockRecorder) *AuthFlowUseCase {
	uc := NewAuthFlowUseCase(gw, nil, rec, nil, Config{
		FlowTTL:         time.Minute,
		DefaultCooldown: 60,
	}, zerolog.Nop())
	return uc
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain digits", "79991234567", "+79991234567"},
		{"already prefixed", "+7 999 123-45-67", "+79991234567"},
		{"parens and spaces", "8 (999) 123 45 67", "+89991234567"},
		{"empty", "", ""},
		{"no digits", "abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NormalizePhone(tt.input))
		})
	}
}

func TestSendCodeCreatesFlow(t *testing.T) {
	gw := &mockAuthGateway{sentCode: &domain.SentCode{SentTo: "app", CodeLength: 5, Timeout: 45}}
	uc := newTestUseCase(gw, &mockRecorder{})
	defer uc.Stop()

	res, err := uc.SendCode(context.Background(), "+7 999 123-45-67")
	require.NoError(t, err)
	require.Equal(t, "+79991234567", res.PhoneNumber)
	require.Equal(t, entities.StepCode, res.Step)
	require.Equal(t, entities.CodeStageNormal, res.CodeStage)
	require.Equal(t, "app", res.SentTo)
	require.Equal(t, 5, res.CodeLength)
	require.Greater(t, res.Cooldown, 0)
	require.Equal(t, []string{"+79991234567"}, gw.startedPhones)
}

func TestSendCodeReplacesExistingFlow(t *testing.T) {
	gw := &mockAuthGateway{sentCode: &domain.SentCode{SentTo: "app", CodeLength: 5}}
	uc := newTestUseCase(gw, &mockRecorder{})
	defer uc.Stop()

	_, err := uc.SendCode(context.Background(), "+79991234567")
	require.NoError(t, err)

	_, err = uc.SendCode(context.Background(), "+79991234567")
	require.NoError(t, err)

	require.Equal(t, []string{"flow-+79991234567"}, gw.cancelled)
	require.Len(t, gw.startedPhones, 2)
}

func TestSendCodeEmptyPhone(t *testing.T) {
	gw := &mockAuthGateway{}
	uc := newTestUseCase(gw, &mockRecorder{})
	defer uc.Stop()

	_, err := uc.SendCode(context.Background(), "---")
	require.ErrorIs(t, err, flowerrors.ErrPhoneRequired)
}

func TestResendCodeHonoursCooldown(t *testing.T) {
	gw := &mockAuthGateway{sentCode: &domain.SentCode{SentTo: "app", CodeLength: 5, Timeout: 60}}
	uc := newTestUseCase(gw, &mockRecorder{})
	defer uc.Stop()

	_, err := uc.SendCode(context.Background(), "+79991234567")
	require.NoError(t, err)

	_, err = uc.ResendCode(context.Background(), "+79991234567", false)
	require.ErrorIs(t, err, flowerrors.ErrResendCooldown)
	require.Equal(t, 0, gw.resendCalls)

	// disarm the cooldown and retry
	uc.mu.Lock()
	uc.flows["+79991234567"].StartCooldown(0)
	uc.mu.Unlock()

	res, err := uc.ResendCode(context.Background(), "+79991234567", true)
	require.NoError(t, err)
	require.Equal(t, 1, gw.resendCalls)
	require.Greater(t, res.Cooldown, 0)
}

func TestResendCodeUnknownFlow(t *testing.T) {
	gw := &mockAuthGateway{}
	uc := newTestUseCase(gw, &mockRecorder{})
	defer uc.Stop()

	_, err := uc.ResendCode(context.Background(), "+79991234567", false)
	require.ErrorIs(t, err, flowerrors.ErrFlowNotFound)
}

func TestVerifyCodeAuthenticates(t *testing.T) {
	user := &domain.AccountInfo{ID: 42, Phone: "+79991234567", Username: "tester"}
	gw := &mockAuthGateway{
		sentCode:     &domain.SentCode{SentTo: "app", CodeLength: 5},
		signInResult: &domain.SignInResult{User: user},
	}
	rec := &mockRecorder{}
	uc := newTestUseCase(gw, rec)
	defer uc.Stop()

	_, err := uc.SendCode(context.Background(), "+79991234567")
	require.NoError(t, err)

	res, err := uc.VerifyCode(context.Background(), "+79991234567", "12345")
	require.NoError(t, err)
	require.True(t, res.Authenticated)
	require.Equal(t, user, res.User)

	require.Equal(t, []string{"+79991234567"}, rec.calls)
	require.Equal(t, []string{"flow-+79991234567"}, gw.finished)

	// flow is gone after success
	_, err = uc.VerifyCode(context.Background(), "+79991234567", "12345")
	require.ErrorIs(t, err, flowerrors.ErrFlowNotFound)
}

func TestVerifyCodeMovesToPasswordStep(t *testing.T) {
	gw := &mockAuthGateway{
		sentCode:     &domain.SentCode{SentTo: "app", CodeLength: 5},
		signInResult: &domain.SignInResult{RequiresPassword: true, PasswordHint: "pet name"},
	}
	rec := &mockRecorder{}
	uc := newTestUseCase(gw, rec)
	defer uc.Stop()

	_, err := uc.SendCode(context.Background(), "+79991234567")
	require.NoError(t, err)

	res, err := uc.VerifyCode(context.Background(), "+79991234567", "12345")
	require.NoError(t, err)
	require.False(t, res.Authenticated)
	require.True(t, res.RequiresPassword)
	require.Equal(t, "pet name", res.PasswordHint)
	require.Empty(t, rec.calls)

	// code step no longer accepts codes
	_, err = uc.VerifyCode(context.Background(), "+79991234567", "12345")
	require.ErrorIs(t, err, flowerrors.ErrWrongStep)

	// password completes the flow
	gw.signInResult = &domain.SignInResult{User: &domain.AccountInfo{ID: 42, Phone: "+79991234567"}}
	pres, err := uc.VerifyPassword(context.Background(), "+79991234567", "hunter2")
	require.NoError(t, err)
	require.True(t, pres.Authenticated)
	require.Equal(t, []string{"+79991234567"}, rec.calls)
}

func TestVerifyCodeEmptyCode(t *testing.T) {
	gw := &mockAuthGateway{}
	uc := newTestUseCase(gw, &mockRecorder{})
	defer uc.Stop()

	_, err := uc.VerifyCode(context.Background(), "+79991234567", "")
	require.ErrorIs(t, err, flowerrors.ErrCodeRequired)
}

func TestEmailVerificationStage(t *testing.T) {
	gw := &mockAuthGateway{
		sentCode: &domain.SentCode{
			SentTo:          "email",
			CodeLength:      6,
			NeedsEmailSetup: true,
			EmailPattern:    "o***@mail.test",
		},
	}
	uc := newTestUseCase(gw, &mockRecorder{})
	defer uc.Stop()

	res, err := uc.SendCode(context.Background(), "+79991234567")
	require.NoError(t, err)
	require.Equal(t, entities.CodeStageEmailVerification, res.CodeStage)
	require.True(t, res.NeedsEmailSetup)

	// plain codes are refused while the email stage is pending
	ec, err := uc.SendEmailCode(context.Background(), "+79991234567", "new@mail.test")
	require.NoError(t, err)
	require.Equal(t, "a***@mail.test", ec.EmailPattern)

	vres, err := uc.VerifyEmailCode(context.Background(), "+79991234567", "123456")
	require.NoError(t, err)
	require.Equal(t, entities.CodeStageNormal, vres.CodeStage)

	// stage machinery refuses a second email verification
	_, err = uc.VerifyEmailCode(context.Background(), "+79991234567", "123456")
	require.ErrorIs(t, err, flowerrors.ErrWrongStep)
}

func TestResendEmailCode(t *testing.T) {
	gw := &mockAuthGateway{
		sentCode: &domain.SentCode{
			SentTo:          "email",
			CodeLength:      6,
			NeedsEmailSetup: true,
			EmailPattern:    "o***@mail.test",
		},
	}
	uc := newTestUseCase(gw, &mockRecorder{})
	defer uc.Stop()

	_, err := uc.SendCode(context.Background(), "+79991234567")
	require.NoError(t, err)

	// without a submitted address there is nothing to resend
	_, err = uc.ResendEmailCode(context.Background(), "+79991234567")
	require.ErrorIs(t, err, flowerrors.ErrEmailRequired)

	_, err = uc.SendEmailCode(context.Background(), "+79991234567", "new@mail.test")
	require.NoError(t, err)

	ec, err := uc.ResendEmailCode(context.Background(), "+79991234567")
	require.NoError(t, err)
	require.Equal(t, "a***@mail.test", ec.EmailPattern)
}

func TestSendEmailCodeOutsideEmailStage(t *testing.T) {
	gw := &mockAuthGateway{sentCode: &domain.SentCode{SentTo: "app", CodeLength: 5}}
	uc := newTestUseCase(gw, &mockRecorder{})
	defer uc.Stop()

	_, err := uc.SendCode(context.Background(), "+79991234567")
	require.NoError(t, err)

	_, err = uc.SendEmailCode(context.Background(), "+79991234567", "new@mail.test")
	require.ErrorIs(t, err, flowerrors.ErrWrongStep)
}

func TestPasswordRecovery(t *testing.T) {
	gw := &mockAuthGateway{
		sentCode:     &domain.SentCode{SentTo: "app", CodeLength: 5},
		signInResult: &domain.SignInResult{RequiresPassword: true},
		recoveryPat:  "r***@mail.test",
	}
	uc := newTestUseCase(gw, &mockRecorder{})
	defer uc.Stop()

	_, err := uc.SendCode(context.Background(), "+79991234567")
	require.NoError(t, err)
	_, err = uc.VerifyCode(context.Background(), "+79991234567", "12345")
	require.NoError(t, err)

	res, err := uc.RequestResetCode(context.Background(), "+79991234567")
	require.NoError(t, err)
	require.Equal(t, "r***@mail.test", res.EmailPattern)

	// recovery completes but does NOT authenticate: operator signs in
	// with the password they just set
	err = uc.ChangePassword(context.Background(), "+79991234567", "654321", "new-password")
	require.NoError(t, err)

	flow, err := uc.acquireFlow("+79991234567")
	require.NoError(t, err)
	defer uc.releaseFlow(flow)
	require.Equal(t, entities.StepPassword, flow.Step)
	require.Equal(t, entities.PasswordStageEnter, flow.PasswordStage)
}

func TestChangePasswordRequiresResetStage(t *testing.T) {
	gw := &mockAuthGateway{
		sentCode:     &domain.SentCode{SentTo: "app", CodeLength: 5},
		signInResult: &domain.SignInResult{RequiresPassword: true},
	}
	uc := newTestUseCase(gw, &mockRecorder{})
	defer uc.Stop()

	_, err := uc.SendCode(context.Background(), "+79991234567")
	require.NoError(t, err)
	_, err = uc.VerifyCode(context.Background(), "+79991234567", "12345")
	require.NoError(t, err)

	err = uc.ChangePassword(context.Background(), "+79991234567", "654321", "new-password")
	require.ErrorIs(t, err, flowerrors.ErrWrongStep)
}

func TestCancelFlow(t *testing.T) {
	gw := &mockAuthGateway{sentCode: &domain.SentCode{SentTo: "app", CodeLength: 5}}
	uc := newTestUseCase(gw, &mockRecorder{})
	defer uc.Stop()

	_, err := uc.SendCode(context.Background(), "+79991234567")
	require.NoError(t, err)

	require.NoError(t, uc.Cancel(context.Background(), "+79991234567"))
	require.Contains(t, gw.cancelled, "flow-+79991234567")

	require.ErrorIs(t, uc.Cancel(context.Background(), "+79991234567"), flowerrors.ErrFlowNotFound)
}

func TestExpiredFlowIsRejected(t *testing.T) {
	gw := &mockAuthGateway{sentCode: &domain.SentCode{SentTo: "app", CodeLength: 5}}
	uc := newTestUseCase(gw, &mockRecorder{})
	defer uc.Stop()

	_, err := uc.SendCode(context.Background(), "+79991234567")
	require.NoError(t, err)

	uc.mu.Lock()
	uc.flows["+79991234567"].ExpiresAt = time.Now().Add(-time.Second)
	uc.mu.Unlock()

	_, err = uc.VerifyCode(context.Background(), "+79991234567", "12345")
	require.ErrorIs(t, err, flowerrors.ErrFlowExpired)
}

func TestCooldownLeftNeverNegative(t *testing.T) {
	flow := &entities.Flow{}
	flow.StartCooldown(0)
	require.Equal(t, 0, flow.CooldownLeft())

	flow.StartCooldown(30)
	left := flow.CooldownLeft()
	require.Greater(t, left, 0)
	require.LessOrEqual(t, left, 31)
}

func TestBusyFlowRejectsOverlappingTransitions(t *testing.T) {
	user := &domain.AccountInfo{ID: 42, Phone: "+79991234567"}
	gw := &mockAuthGateway{
		sentCode:     &domain.SentCode{SentTo: "app", CodeLength: 5},
		signInResult: &domain.SignInResult{User: user},
		signInGate:   make(chan struct{}),
	}
	uc := newTestUseCase(gw, &mockRecorder{})
	defer uc.Stop()

	_, err := uc.SendCode(context.Background(), "+79991234567")
	require.NoError(t, err)

	uc.mu.Lock()
	uc.flows["+79991234567"].StartCooldown(0)
	uc.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := uc.VerifyCode(context.Background(), "+79991234567", "12345")
		done <- err
	}()

	// wait for the verify call to reach the gateway and hold the flow
	require.Eventually(t, func() bool {
		_, err := uc.ResendCode(context.Background(), "+79991234567", false)
		return errors.Is(err, flowerrors.ErrFlowBusy)
	}, time.Second, 5*time.Millisecond)

	_, err = uc.SendCode(context.Background(), "+79991234567")
	require.ErrorIs(t, err, flowerrors.ErrFlowBusy)
	require.ErrorIs(t, uc.Cancel(context.Background(), "+79991234567"), flowerrors.ErrFlowBusy)

	close(gw.signInGate)
	require.NoError(t, <-done)

	// flow completed while busy, nothing left to act on
	_, err = uc.ResendCode(context.Background(), "+79991234567", false)
	require.ErrorIs(t, err, flowerrors.ErrFlowNotFound)
}
