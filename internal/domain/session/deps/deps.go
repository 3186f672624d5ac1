package deps

import (
	"context"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/session/entities"
)

// SessionRepository persists session records and their operation log
type SessionRepository interface {
	// RecordAuthorized upserts a record after a successful sign-in
	RecordAuthorized(ctx context.Context, phone string, user *domain.AccountInfo) error

	List(ctx context.Context) ([]entities.SessionRecord, error)
	GetByID(ctx context.Context, id uint) (*entities.SessionRecord, error)
	GetByPhone(ctx context.Context, phone string) (*entities.SessionRecord, error)
	Delete(ctx context.Context, id uint) error
	SetActive(ctx context.Context, phone string, active bool) error
	TouchLastUsed(ctx context.Context, phone string) error

	// AppendLog records one audited operation
	AppendLog(ctx context.Context, entry *entities.ExportLogEntry) error
	// History returns a session's operation log, newest first
	History(ctx context.Context, phone string, limit int) ([]entities.ExportLogEntry, error)
}

// SessionService is what the delivery layer consumes
type SessionService interface {
	List(ctx context.Context) ([]entities.SessionRecord, error)
	Get(ctx context.Context, id uint) (*entities.SessionRecord, error)
	Delete(ctx context.Context, id uint) error
	History(ctx context.Context, id uint) ([]entities.ExportLogEntry, error)

	// Metrics returns the poller's merged snapshot for the phone
	Metrics(ctx context.Context, phone string) (*entities.MetricsSnapshot, error)
	// OpenLogTail starts a tail subscription and returns its id
	OpenLogTail(ctx context.Context, phone string) (string, error)
	// ReadLogTail returns the lines accumulated since the last read
	ReadLogTail(ctx context.Context, subscriptionID string) (*entities.LogChunk, error)
	// CloseLogTail tears the subscription down
	CloseLogTail(ctx context.Context, subscriptionID string) error
}
