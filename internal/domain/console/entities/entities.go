package entities

import "time"

// ExportKind names the artifact families the console produces
type ExportKind string

const (
	KindContacts       ExportKind = "contacts"
	KindChats          ExportKind = "chats"
	KindSavedMessages  ExportKind = "saved_messages"
	KindDialog         ExportKind = "dialog"
	KindContactsPhotos ExportKind = "contacts_photos"
	KindAvatar         ExportKind = "avatar"
	KindBalances       ExportKind = "balances"
	KindPatterns       ExportKind = "patterns"
)

// OperationResult is the uniform terminal outcome of a dispatched
// console operation. Exactly one of the failure flags explains a
// non-success; Busy means the trigger was dropped without any remote
// call.
type OperationResult struct {
	Operation string `json:"operation"`
	Success   bool   `json:"success"`
	Busy      bool   `json:"busy,omitempty"`
	// ReauthRequired marks the session as needing a fresh sign-in
	ReauthRequired bool `json:"reauth_required,omitempty"`
	// Existing marks a result served from a prior export
	Existing    bool        `json:"existing,omitempty"`
	ArtifactKey string      `json:"artifact_key,omitempty"`
	Hint        string      `json:"hint,omitempty"`
	Detail      string      `json:"detail,omitempty"`
	Payload     interface{} `json:"payload,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	Duration    float64     `json:"duration_seconds"`
}

// ExportFile is a stored artifact surfaced to the console
type ExportFile struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	Kind         string    `json:"kind"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}
