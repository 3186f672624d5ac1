package business

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain/session/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/session/entities"
	sessionerrors "github.com/arhteh596/granovskicrm-sub001/internal/domain/session/errors"
)

// SessionUseCase implements session listing, deletion, history and the
// poller-backed live views
type SessionUseCase struct {
	repo   deps.SessionRepository
	poller *Poller
	logger zerolog.Logger
}

// NewSessionUseCase creates a new session use case
func NewSessionUseCase(repo deps.SessionRepository, poller *Poller, logger zerolog.Logger) *SessionUseCase {
	return &SessionUseCase{
		repo:   repo,
		poller: poller,
		logger: logger.With().Str("usecase", "session").Logger(),
	}
}

// List returns all tracked sessions
func (uc *SessionUseCase) List(ctx context.Context) ([]entities.SessionRecord, error) {
	return uc.repo.List(ctx)
}

// Get returns one session by id
func (uc *SessionUseCase) Get(ctx context.Context, id uint) (*entities.SessionRecord, error) {
	return uc.repo.GetByID(ctx, id)
}

// Delete removes a session record
func (uc *SessionUseCase) Delete(ctx context.Context, id uint) error {
	record, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}

	uc.logger.Info().Str("phone", record.PhoneNumber).Msg("session deleted")
	return nil
}

// History returns a session's operation log, newest first
func (uc *SessionUseCase) History(ctx context.Context, id uint) ([]entities.ExportLogEntry, error) {
	record, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return uc.repo.History(ctx, record.PhoneNumber, 0)
}

// Metrics returns the poller's merged snapshot for the phone
func (uc *SessionUseCase) Metrics(ctx context.Context, phone string) (*entities.MetricsSnapshot, error) {
	if phone == "" {
		return nil, sessionerrors.ErrPhoneRequired
	}

	if snap, ok := uc.poller.Snapshot(phone); ok {
		return snap, nil
	}

	// Nothing polled yet: confirm the session exists so the caller can
	// tell "not yet measured" apart from "unknown phone"
	if _, err := uc.repo.GetByPhone(ctx, phone); err != nil {
		return nil, err
	}
	return &entities.MetricsSnapshot{PhoneNumber: phone}, nil
}

// OpenLogTail starts a tail subscription for the session's log
func (uc *SessionUseCase) OpenLogTail(ctx context.Context, phone string) (string, error) {
	if phone == "" {
		return "", sessionerrors.ErrPhoneRequired
	}
	if _, err := uc.repo.GetByPhone(ctx, phone); err != nil {
		return "", err
	}
	return uc.poller.Subscribe(phone)
}

// ReadLogTail returns the lines accumulated since the last read
func (uc *SessionUseCase) ReadLogTail(_ context.Context, subscriptionID string) (*entities.LogChunk, error) {
	return uc.poller.Read(subscriptionID)
}

// CloseLogTail tears the subscription down
func (uc *SessionUseCase) CloseLogTail(_ context.Context, subscriptionID string) error {
	return uc.poller.Unsubscribe(subscriptionID)
}

// Ensure SessionUseCase implements deps.SessionService
var _ deps.SessionService = (*SessionUseCase)(nil)
