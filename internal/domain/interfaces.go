package domain

import (
	"context"

	patternentities "github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/entities"
)

// AuthGateway drives the interactive sign-in of a third-party session.
// A flow owns one live MTProto client from StartFlow until Finish or Cancel.
type AuthGateway interface {
	// CheckConnection verifies Telegram is reachable with an ephemeral client
	CheckConnection(ctx context.Context) error

	// StartFlow connects a client for phone and returns the flow id
	StartFlow(ctx context.Context, phone string) (string, error)

	// SendCode requests a login code for the flow's phone
	SendCode(ctx context.Context, flowID string) (*SentCode, error)

	// ResendCode re-requests the login code, optionally forcing SMS delivery
	ResendCode(ctx context.Context, flowID string, forceSMS bool) (*SentCode, error)

	// SendEmailCode sends a verification code to the given email when the
	// account demands login-email setup before codes flow
	SendEmailCode(ctx context.Context, flowID, email string) (*EmailCode, error)

	// VerifyEmailCode confirms the email; on success Telegram dispatches a
	// fresh login code which is returned
	VerifyEmailCode(ctx context.Context, flowID, code string) (*SentCode, error)

	// SignIn submits the login code
	SignIn(ctx context.Context, flowID, code string) (*SignInResult, error)

	// SignInWithPassword submits the 2FA password
	SignInWithPassword(ctx context.Context, flowID, password string) (*SignInResult, error)

	// RequestPasswordRecovery asks Telegram to email a recovery code and
	// returns the masked email pattern
	RequestPasswordRecovery(ctx context.Context, flowID string) (string, error)

	// RecoverPassword validates the recovery code and sets a new password.
	// The flow returns to password entry; it does not sign in.
	RecoverPassword(ctx context.Context, flowID, code, newPassword string) error

	// FlowPhone returns the phone number a flow was started for
	FlowPhone(flowID string) (string, error)

	// FinishFlow releases the flow's client, keeping the stored session
	FinishFlow(ctx context.Context, flowID string) error

	// CancelFlow releases the flow's client and discards flow state
	CancelFlow(flowID string)
}

// AccountGateway runs operations over an authorized stored session
type AccountGateway interface {
	IsAuthorized(ctx context.Context, phone string) (bool, error)
	UserInfo(ctx context.Context, phone string) (*AccountInfo, error)

	ExportContacts(ctx context.Context, phone string) (*ExportArtifact, error)
	ExportChats(ctx context.Context, phone string) (*ExportArtifact, error)
	ExportSavedMessages(ctx context.Context, phone string) (*ExportArtifact, error)
	ExportDialog(ctx context.Context, phone, peer string) (*ExportArtifact, error)
	ExportContactsWithPhotos(ctx context.Context, phone string) (*ExportArtifact, error)
	FetchAvatar(ctx context.Context, phone string) (*ExportArtifact, error)

	ScanBalances(ctx context.Context, phone string) (*BalanceReport, *ExportArtifact, error)
	SearchPatterns(ctx context.Context, phone string, patterns []string) (*patternentities.SearchOutcome, error)

	SessionMetrics(ctx context.Context, phone string, contactsCount, chatsCount int) (*SessionMetrics, error)
	TwoFAStatus(ctx context.Context, phone string) (*TwoFAStatus, error)
	UpdatePassword(ctx context.Context, phone, currentPassword, newPassword, hint string) error
	SetOrUpdate2FAEmail(ctx context.Context, phone, email string) (*EmailCode, error)

	LoginEmailStatus(ctx context.Context, phone string) (*LoginEmailStatus, error)
	SendLoginEmailCode(ctx context.Context, phone, email string) (*EmailCode, error)
	VerifyLoginEmail(ctx context.Context, phone, code string) error
	// AutoRotateLoginEmail picks the next address from the rotation list and
	// starts the change; returns the address the code went to
	AutoRotateLoginEmail(ctx context.Context, phone string) (string, error)

	TerminateOtherSessions(ctx context.Context, phone string) error
	AutomateServiceChat(ctx context.Context, phone string) (*AutomationReport, error)
}

// ArtifactStore persists export artifacts keyed by phone and kind
type ArtifactStore interface {
	Put(ctx context.Context, phone, kind, name, contentType string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
	List(ctx context.Context, phone, kind string) ([]Artifact, error)
}

// AuditProducer publishes operation audit events
type AuditProducer interface {
	SendOperation(ctx context.Context, event *AuditEvent) error
	IsHealthy() bool
	Close() error
}
