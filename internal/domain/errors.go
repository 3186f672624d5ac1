package domain

import (
	"errors"
	"fmt"
	"time"
)

// Hint classifies a remote failure so callers can branch on structure
// instead of matching on error message text
type Hint string

const (
	HintNone                Hint = ""
	HintInvalidPhone        Hint = "invalid_phone"
	HintRateLimited         Hint = "rate_limited"
	HintInvalidCode         Hint = "invalid_code"
	HintExpiredCode         Hint = "expired_code"
	HintWrongPassword       Hint = "wrong_password"
	HintSessionUnauthorized Hint = "session_unauthorized"
	HintTransport           Hint = "transport"
)

// RemoteError wraps a Telegram-side failure with a structural hint
type RemoteError struct {
	Hint       Hint
	RetryAfter time.Duration // populated for rate limits
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("telegram: %s: %v", e.Hint, e.Err)
	}
	return fmt.Sprintf("telegram: %s", e.Hint)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError wraps err with a hint
func NewRemoteError(hint Hint, err error) *RemoteError {
	return &RemoteError{Hint: hint, Err: err}
}

// HintOf extracts the hint from an error chain, HintNone when absent
func HintOf(err error) Hint {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Hint
	}
	return HintNone
}

// RetryAfterOf extracts the rate-limit wait from an error chain
func RetryAfterOf(err error) time.Duration {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.RetryAfter
	}
	return 0
}

var (
	// ErrSessionNotFound is returned when no session record matches
	ErrSessionNotFound = errors.New("session not found")

	// ErrFlowNotFound is returned when an auth flow id is unknown or expired
	ErrFlowNotFound = errors.New("auth flow not found")

	// ErrArtifactNotFound is returned when an export object is missing
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrNotConnected is returned when an operation requires a live client
	ErrNotConnected = errors.New("not connected to Telegram")
)
