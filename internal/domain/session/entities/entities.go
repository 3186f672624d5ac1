package entities

import "time"

// SessionRecord is a taken-over Telegram account tracked by the console
type SessionRecord struct {
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

// ExportLogEntry is one audited operation of a session, newest first in
// history listings
type ExportLogEntry struct {
	ID          uint      `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	Operation   string    `json:"operation"`
	ArtifactKey string    `json:"artifact_key,omitempty"`
	Success     bool      `json:"success"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MetricsSnapshot is the merged per-session metrics view kept fresh by
// the poller. A failed refresh keeps the prior value per key.
type MetricsSnapshot struct {
	PhoneNumber   string    `json:"phone_number"`
	IsAuthorized  *bool     `json:"is_authorized,omitempty"`
	Devices       *int      `json:"devices,omitempty"`
	Has2FA        *bool     `json:"has_2fa,omitempty"`
	EmailPattern  *string   `json:"email_pattern,omitempty"`
	ContactsCount *int      `json:"contacts_count,omitempty"`
	ChatsCount    *int      `json:"chats_count,omitempty"`
	RefreshedAt   time.Time `json:"refreshed_at"`
}

// Merge overwrites only the keys the fresh snapshot actually carries
func (s *MetricsSnapshot) Merge(fresh *MetricsSnapshot) {
	if fresh.IsAuthorized != nil {
		s.IsAuthorized = fresh.IsAuthorized
	}
	if fresh.Devices != nil {
		s.Devices = fresh.Devices
	}
	if fresh.Has2FA != nil {
		s.Has2FA = fresh.Has2FA
	}
	if fresh.EmailPattern != nil {
		s.EmailPattern = fresh.EmailPattern
	}
	if fresh.ContactsCount != nil {
		s.ContactsCount = fresh.ContactsCount
	}
	if fresh.ChatsCount != nil {
		s.ChatsCount = fresh.ChatsCount
	}
	s.RefreshedAt = fresh.RefreshedAt
}

// LogChunk is one batch of tailed session log lines
type LogChunk struct {
	PhoneNumber string    `json:"phone_number"`
	Lines       []string  `json:"lines"`
	FetchedAt   time.Time `json:"fetched_at"`
}
