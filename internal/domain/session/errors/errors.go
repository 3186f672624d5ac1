package errors

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSubscriptionNotFound = errors.New("log subscription not found")
	ErrPhoneRequired        = errors.New("phone number is required")
	ErrPollerStopped        = errors.New("session poller is stopped")
)
