package telegram

import "time"

// TelegramSessionModel holds the MTProto session blob for one phone number.
// The phone is stored hashed so the blob table carries no plain identifiers.
type TelegramSessionModel struct {
	ID          uint      `gorm:"primaryKey"`
	PhoneHash   string    `gorm:"uniqueIndex;not null;size:64"`
	SessionData []byte    `gorm:"type:bytea;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for TelegramSessionModel
func (TelegramSessionModel) TableName() string {
	return "telegram_sessions"
}
