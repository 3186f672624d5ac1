package errors

import "errors"

var (
	ErrFlowNotFound     = errors.New("auth flow not found")
	ErrFlowExpired      = errors.New("auth flow expired")
	ErrPhoneRequired    = errors.New("phone number is required")
	ErrCodeRequired     = errors.New("code is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrWrongStep        = errors.New("operation not valid at this flow step")
	ErrFlowBusy         = errors.New("another operation is in progress for this flow")
	ErrResendCooldown   = errors.New("resend cooldown has not elapsed")
)
