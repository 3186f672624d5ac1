package deps

import (
	"context"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/console/entities"
)

// ConsoleService dispatches operator-triggered operations over an
// authorized session. Every method returns a terminal OperationResult;
// errors surface only for malformed requests, never for remote
// failures.
type ConsoleService interface {
	Profile(ctx context.Context, consoleID, phone string) (*entities.OperationResult, error)

	ExportContacts(ctx context.Context, consoleID, phone string, force bool) (*entities.OperationResult, error)
	ExportChats(ctx context.Context, consoleID, phone string, force bool) (*entities.OperationResult, error)
	ExportSavedMessages(ctx context.Context, consoleID, phone string, force bool) (*entities.OperationResult, error)
	ExportDialog(ctx context.Context, consoleID, phone, peer string) (*entities.OperationResult, error)
	ExportContactsWithPhotos(ctx context.Context, consoleID, phone string, force bool) (*entities.OperationResult, error)
	FetchAvatar(ctx context.Context, consoleID, phone string, force bool) (*entities.OperationResult, error)
	ScanBalances(ctx context.Context, consoleID, phone string, force bool) (*entities.OperationResult, error)

	TwoFAStatus(ctx context.Context, consoleID, phone string) (*entities.OperationResult, error)
	UpdatePassword(ctx context.Context, consoleID, phone, current, newPassword, hint string) (*entities.OperationResult, error)
	SetOrUpdate2FAEmail(ctx context.Context, consoleID, phone, email string) (*entities.OperationResult, error)

	LoginEmailStatus(ctx context.Context, consoleID, phone string) (*entities.OperationResult, error)
	SendLoginEmailCode(ctx context.Context, consoleID, phone, email string) (*entities.OperationResult, error)
	VerifyLoginEmail(ctx context.Context, consoleID, phone, code string) (*entities.OperationResult, error)
	AutoRotateLoginEmail(ctx context.Context, consoleID, phone string) (*entities.OperationResult, error)

	TerminateOtherSessions(ctx context.Context, consoleID, phone string) (*entities.OperationResult, error)
	AutomateServiceChat(ctx context.Context, consoleID, phone string) (*entities.OperationResult, error)

	// LastExports lists the newest stored artifact per kind
	LastExports(ctx context.Context, phone string) ([]entities.ExportFile, error)
	// DownloadExport streams one stored artifact
	DownloadExport(ctx context.Context, phone, kind, name string) ([]byte, string, error)
}

// Guard serializes operation triggers per console instance
type Guard interface {
	TryAcquire(consoleID string) bool
	Release(consoleID string)
}

// ExportCache answers whether a prior artifact can serve an export
// without touching Telegram
type ExportCache interface {
	Lookup(ctx context.Context, phone string, kind entities.ExportKind) (*domain.Artifact, bool)
}
