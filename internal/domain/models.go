package domain

import "time"

// SentCode describes a login code dispatched by Telegram during sign-in
type SentCode struct {
	PhoneCodeHash string
	// SentTo describes where the code went: "app", "sms", "call" or a
	// masked email pattern for email-delivered codes
	SentTo          string
	Timeout         int // seconds until resend is allowed, 0 when unknown
	CodeLength      int
	NeedsEmailSetup bool   // account requires a login email before codes flow
	EmailPattern    string // masked pattern when email delivery is involved
}

// AccountInfo is the minimal profile of the account behind a session
type AccountInfo struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone"`
}

// SignInResult is the outcome of a code or password submission
type SignInResult struct {
	RequiresPassword bool
	PasswordHint     string
	User             *AccountInfo
}

// DeviceInfo describes one active authorization of the account
type DeviceInfo struct {
	DeviceModel string `json:"device_model"`
	Platform    string `json:"platform"`
	AppName     string `json:"app_name"`
	Country     string `json:"country"`
	DateActive  int64  `json:"date_active"`
	Current     bool   `json:"current"`
}

// SessionMetrics is the periodically refreshed state of a session
type SessionMetrics struct {
	IsAuthorized  bool         `json:"is_authorized"`
	Devices       []DeviceInfo `json:"devices"`
	Has2FA        bool         `json:"has_2fa"`
	EmailPattern  string       `json:"email_pattern,omitempty"`
	ContactsCount int          `json:"contacts_count"`
	ChatsCount    int          `json:"chats_count"`
}

// TwoFAStatus describes the cloud-password state of the account
type TwoFAStatus struct {
	HasPassword          bool   `json:"has_2fa"`
	Hint                 string `json:"hint,omitempty"`
	RecoveryEmailPattern string `json:"recovery_email_pattern,omitempty"`
	LoginEmailPattern    string `json:"login_email_pattern,omitempty"`
}

// LoginEmailStatus describes the login email attached to the account
type LoginEmailStatus struct {
	Pattern   string `json:"pattern,omitempty"`
	Confirmed bool   `json:"confirmed"`
}

// EmailCode describes a verification code sent to an email address
type EmailCode struct {
	Pattern string `json:"pattern"`
	Length  int    `json:"length"`
}

// ExportArtifact is the raw product of an export operation before it is
// persisted to object storage
type ExportArtifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Artifact is a stored export object
type Artifact struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// BalanceReport is the outcome of a wallet-bot balance scan
type BalanceReport struct {
	CoinsFound []string               `json:"coins_found"`
	PerBot     map[string]BotBalances `json:"per_bot"`
}

// BotBalances holds the parsed balances from one wallet bot reply
type BotBalances struct {
	Raw      string    `json:"raw,omitempty"`
	Balances []Balance `json:"balances"`
}

// Balance is one parsed coin amount
type Balance struct {
	Coin   string `json:"coin"`
	Amount string `json:"amount"`
}

// AutomationReport summarizes the steps of the service-chat automation
type AutomationReport struct {
	Success bool     `json:"success"`
	Steps   []string `json:"steps"`
}

// AuditEvent is one operation record published to the audit topic and
// mirrored into the exports log table
type AuditEvent struct {
	PhoneNumber string    `json:"phone_number"`
	Operation   string    `json:"operation"`
	Artifact    string    `json:"artifact,omitempty"`
	Success     bool      `json:"success"`
	Detail      string    `json:"detail,omitempty"`
	At          time.Time `json:"at"`
}
