package deps

import (
	"context"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/authflow/entities"
)

// AuthFlowService defines the phone-code-password authentication flow
type AuthFlowService interface {
	// CheckConnection verifies Telegram is reachable before the flow starts
	CheckConnection(ctx context.Context) error

	// SendCode starts (or restarts) a flow for the phone and requests a
	// login code
	SendCode(ctx context.Context, phone string) (*entities.SendCodeResult, error)

	// ResendCode re-requests the login code, optionally forcing SMS
	ResendCode(ctx context.Context, phone string, forceSMS bool) (*entities.SendCodeResult, error)

	// SendEmailCode submits the login email address when Telegram requires
	// email setup before sending the code
	SendEmailCode(ctx context.Context, phone, email string) (*entities.EmailCodeResult, error)

	// ResendEmailCode re-sends the verification code to the address
	// submitted earlier in the email setup stage
	ResendEmailCode(ctx context.Context, phone string) (*entities.EmailCodeResult, error)

	// VerifyEmailCode confirms the email verification code; on success the
	// login code request is repeated automatically
	VerifyEmailCode(ctx context.Context, phone, code string) (*entities.SendCodeResult, error)

	// VerifyCode submits the login code
	VerifyCode(ctx context.Context, phone, code string) (*entities.VerifyCodeResult, error)

	// VerifyPassword submits the 2FA password
	VerifyPassword(ctx context.Context, phone, password string) (*entities.PasswordResult, error)

	// RequestResetCode starts 2FA password recovery via the recovery email
	RequestResetCode(ctx context.Context, phone string) (*entities.ResetCodeResult, error)

	// ChangePassword completes recovery with the emailed code and a new
	// password; the flow returns to password entry
	ChangePassword(ctx context.Context, phone, code, newPassword string) error

	// Cancel abandons the flow
	Cancel(ctx context.Context, phone string) error
}

// SessionRecorder persists the session record once a flow succeeds
type SessionRecorder interface {
	RecordAuthorized(ctx context.Context, phone string, user *domain.AccountInfo) error
}
