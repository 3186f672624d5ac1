package dto

// PhoneRequest carries just the phone number
type PhoneRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// ResendCodeRequest re-requests a login code
type ResendCodeRequest struct {
	PhoneNumber string `json:"phone_number"`
	ForceSMS    bool   `json:"force_sms,omitempty"`
}

// SendCodeResponse describes where the login code went
type SendCodeResponse struct {
	PhoneNumber     string `json:"phone_number"`
	Step            string `json:"step"`
	CodeStage       string `json:"code_stage"`
	SentTo          string `json:"sent_to"`
	CodeLength      int    `json:"code_length,omitempty"`
	Cooldown        int    `json:"cooldown"`
	NeedsEmailSetup bool   `json:"needs_email_setup,omitempty"`
	EmailPattern    string `json:"email_pattern,omitempty"`
}

// VerifyCodeRequest submits a login or email verification code
type VerifyCodeRequest struct {
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
}

// VerifyCodeResponse is the outcome of a code submission
type VerifyCodeResponse struct {
	Authenticated    bool         `json:"authenticated"`
	RequiresPassword bool         `json:"requires_password,omitempty"`
	PasswordHint     string       `json:"password_hint,omitempty"`
	User             *UserPayload `json:"user,omitempty"`
}

// VerifyPasswordRequest submits the 2FA password
type VerifyPasswordRequest struct {
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

// VerifyPasswordResponse is the outcome of a password submission
type VerifyPasswordResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *UserPayload `json:"user,omitempty"`
}

// SendEmailCodeRequest submits the login email address
type SendEmailCodeRequest struct {
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

// SendEmailCodeResponse describes where the email code went
type SendEmailCodeResponse struct {
	EmailPattern string `json:"email_pattern"`
	CodeLength   int    `json:"code_length,omitempty"`
}

// ResetCodeResponse carries the masked recovery email
type ResetCodeResponse struct {
	EmailPattern string `json:"email_pattern"`
}

// ChangePasswordRequest completes 2FA recovery
type ChangePasswordRequest struct {
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// StatusResponse is a bare ok/status payload
type StatusResponse struct {
	Status string `json:"status"`
}

// UserPayload is the signed-in account surfaced to the console
type UserPayload struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// ErrorResponse is the uniform error payload. Hint is the structural
// failure category the console switches its messaging on.
type ErrorResponse struct {
	Error      string `json:"error"`
	Hint       string `json:"hint,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}
