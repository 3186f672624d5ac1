package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/session/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/session/entities"
	sessionerrors "github.com/arhteh596/granovskicrm-sub001/internal/domain/session/errors"
)

const defaultHistoryLimit = 100

// SessionModel is the gorm model for a tracked session
type SessionModel struct {
	ID          uint   `gorm:"primaryKey"`
	PhoneNumber string `gorm:"uniqueIndex;size:32;not null"`
	Username    string `gorm:"size:64"`
	FirstName   string `gorm:"size:128"`
	LastName    string `gorm:"size:128"`
	TelegramID  int64
	IsActive    bool `gorm:"default:true"`
	CreatedAt   time.Time
	LastUsedAt  time.Time
}

// TableName returns the table name for SessionModel
func (SessionModel) TableName() string {
	return "sessions"
}

// ExportLogModel is the gorm model for one audited operation
type ExportLogModel struct {
	ID          uint   `gorm:"primaryKey"`
	PhoneNumber string `gorm:"index;size:32;not null"`
	Operation   string `gorm:"size:64;not null"`
	ArtifactKey string `gorm:"size:512"`
	Success     bool
	Detail      string `gorm:"type:text"`
	CreatedAt   time.Time
}

// TableName returns the table name for ExportLogModel
func (ExportLogModel) TableName() string {
	return "exports_log"
}

// sessionRepository implements deps.SessionRepository over postgres
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a postgres-backed session repository
func NewSessionRepository(db *gorm.DB) deps.SessionRepository {
	return &sessionRepository{db: db}
}

// RecordAuthorized upserts a record after a successful sign-in
func (r *sessionRepository) RecordAuthorized(ctx context.Context, phone string, user *domain.AccountInfo) error {
	now := time.Now()

	var model SessionModel
	err := r.db.WithContext(ctx).Where("phone_number = ?", phone).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		model = SessionModel{
			PhoneNumber: phone,
			IsActive:    true,
			CreatedAt:   now,
			LastUsedAt:  now,
		}
		applyUser(&model, user)
		return r.db.WithContext(ctx).Create(&model).Error
	}
	if err != nil {
		return err
	}

	model.IsActive = true
	model.LastUsedAt = now
	applyUser(&model, user)
	return r.db.WithContext(ctx).Save(&model).Error
}

func applyUser(model *SessionModel, user *domain.AccountInfo) {
	if user == nil {
		return
	}
	model.Username = user.Username
	model.FirstName = user.FirstName
	model.LastName = user.LastName
	model.TelegramID = user.ID
}

// List returns all tracked sessions, newest first
func (r *sessionRepository) List(ctx context.Context) ([]entities.SessionRecord, error) {
	var models []SessionModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]entities.SessionRecord, len(models))
	for i, m := range models {
		records[i] = toRecord(&m)
	}
	return records, nil
}

// GetByID returns one session by primary key
func (r *sessionRepository) GetByID(ctx context.Context, id uint) (*entities.SessionRecord, error) {
	var model SessionModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, sessionerrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	record := toRecord(&model)
	return &record, nil
}

// GetByPhone returns one session by phone number
func (r *sessionRepository) GetByPhone(ctx context.Context, phone string) (*entities.SessionRecord, error) {
	var model SessionModel
	err := r.db.WithContext(ctx).Where("phone_number = ?", phone).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, sessionerrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	record := toRecord(&model)
	return &record, nil
}

// Delete removes a session record
func (r *sessionRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&SessionModel{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return sessionerrors.ErrSessionNotFound
	}
	return nil
}

// SetActive patches only the liveness flag
func (r *sessionRepository) SetActive(ctx context.Context, phone string, active bool) error {
	return r.db.WithContext(ctx).
		Model(&SessionModel{}).
		Where("phone_number = ?", phone).
		Update("is_active", active).Error
}

// TouchLastUsed bumps the last-used timestamp
func (r *sessionRepository) TouchLastUsed(ctx context.Context, phone string) error {
	return r.db.WithContext(ctx).
		Model(&SessionModel{}).
		Where("phone_number = ?", phone).
		Update("last_used_at", time.Now()).Error
}

// AppendLog records one audited operation
func (r *sessionRepository) AppendLog(ctx context.Context, entry *entities.ExportLogEntry) error {
	model := ExportLogModel{
		PhoneNumber: entry.PhoneNumber,
		Operation:   entry.Operation,
		ArtifactKey: entry.ArtifactKey,
		Success:     entry.Success,
		Detail:      entry.Detail,
		CreatedAt:   time.Now(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

// History returns a session's operation log, newest first
func (r *sessionRepository) History(ctx context.Context, phone string, limit int) ([]entities.ExportLogEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var models []ExportLogModel
	err := r.db.WithContext(ctx).
		Where("phone_number = ?", phone).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]entities.ExportLogEntry, len(models))
	for i, m := range models {
		entries[i] = entities.ExportLogEntry{
			ID:          m.ID,
			PhoneNumber: m.PhoneNumber,
			Operation:   m.Operation,
			ArtifactKey: m.ArtifactKey,
			Success:     m.Success,
			Detail:      m.Detail,
			CreatedAt:   m.CreatedAt,
		}
	}
	return entries, nil
}

func toRecord(m *SessionModel) entities.SessionRecord {
	return entities.SessionRecord{
		ID:          m.ID,
		PhoneNumber: m.PhoneNumber,
		Username:    m.Username,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		TelegramID:  m.TelegramID,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		LastUsedAt:  m.LastUsedAt,
	}
}
