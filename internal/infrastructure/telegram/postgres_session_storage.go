package telegram

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/gotd/td/session"
	"gorm.io/gorm"
)

// PostgresSessionStorage implements session.Storage over PostgreSQL,
// one row per phone number keyed by its SHA256 hash
type PostgresSessionStorage struct {
	db        *gorm.DB
	phoneHash string
}

// NewPostgresSessionStorage creates a session storage bound to a phone number
func NewPostgresSessionStorage(db *gorm.DB, phoneNumber string) (*PostgresSessionStorage, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if phoneNumber == "" {
		return nil, fmt.Errorf("phone number is required")
	}

	hash := sha256.Sum256([]byte(phoneNumber))

	return &PostgresSessionStorage{
		db:        db,
		phoneHash: fmt.Sprintf("%x", hash[:]),
	}, nil
}

// LoadSession loads session data from PostgreSQL
func (s *PostgresSessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	var sess TelegramSessionModel
	result := s.db.WithContext(ctx).Where("phone_hash = ?", s.phoneHash).First(&sess)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, session.ErrNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load session: %w", result.Error)
	}

	if len(sess.SessionData) == 0 {
		return nil, session.ErrNotFound
	}

	return sess.SessionData, nil
}

// StoreSession stores session data to PostgreSQL
func (s *PostgresSessionStorage) StoreSession(ctx context.Context, data []byte) error {
	var sess TelegramSessionModel
	result := s.db.WithContext(ctx).Where("phone_hash = ?", s.phoneHash).First(&sess)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		sess = TelegramSessionModel{
			PhoneHash:   s.phoneHash,
			SessionData: data,
		}
		if err := s.db.WithContext(ctx).Create(&sess).Error; err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		return nil
	}
	if result.Error != nil {
		return fmt.Errorf("failed to query session: %w", result.Error)
	}

	if err := s.db.WithContext(ctx).Model(&sess).Update("session_data", data).Error; err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}

// DeleteSession removes the session blob from the database
func (s *PostgresSessionStorage) DeleteSession(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("phone_hash = ?", s.phoneHash).Delete(&TelegramSessionModel{}).Error
}

// SessionExists checks if a session blob exists in the database
func (s *PostgresSessionStorage) SessionExists(ctx context.Context) bool {
	var count int64
	s.db.WithContext(ctx).Model(&TelegramSessionModel{}).Where("phone_hash = ?", s.phoneHash).Count(&count)
	return count > 0
}

// PhoneHash returns the hashed phone number
func (s *PostgresSessionStorage) PhoneHash() string {
	return s.phoneHash
}

// Ensure PostgresSessionStorage implements session.Storage interface
var _ session.Storage = (*PostgresSessionStorage)(nil)
