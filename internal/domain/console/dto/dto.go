package dto

// ForceRequest optionally bypasses the export cache
type ForceRequest struct {
	Force bool `json:"force,omitempty"`
}

// ExportDialogRequest names the peer to export
type ExportDialogRequest struct {
	Peer string `json:"peer"`
}

// UpdatePasswordRequest changes the 2FA password
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password"`
	Hint            string `json:"hint,omitempty"`
}

// EmailRequest carries an email address
type EmailRequest struct {
	Email string `json:"email"`
}

// CodeRequest carries a verification code
type CodeRequest struct {
	Code string `json:"code"`
}

// ErrorResponse generic error response
type ErrorResponse struct {
	Error string `json:"error"`
}
