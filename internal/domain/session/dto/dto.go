package dto

import (
	"time"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain/session/entities"
)

// SessionResponse is one tracked session
type SessionResponse struct {
	ID          uint      `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	Username    string    `json:"username,omitempty"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	TelegramID  int64     `json:"telegram_id,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

// FromRecord maps a session record to its response payload
func FromRecord(r *entities.SessionRecord) SessionResponse {
	return SessionResponse{
		ID:          r.ID,
		PhoneNumber: r.PhoneNumber,
		Username:    r.Username,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		TelegramID:  r.TelegramID,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		LastUsedAt:  r.LastUsedAt,
	}
}

// SessionListResponse lists tracked sessions
type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
}

// HistoryResponse lists a session's audited operations, newest first
type HistoryResponse struct {
	History []entities.ExportLogEntry `json:"history"`
}

// OpenLogTailResponse carries the new subscription id
type OpenLogTailResponse struct {
	SubscriptionID string `json:"subscription_id"`
}

// ErrorResponse generic error response
type ErrorResponse struct {
	Error string `json:"error"`
}
