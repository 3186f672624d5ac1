package errors

import "errors"

var (
	ErrConsoleIDRequired = errors.New("console id is required")
	ErrPhoneRequired     = errors.New("phone number is required")
	ErrPeerRequired      = errors.New("peer is required")
	ErrEmailRequired     = errors.New("email is required")
	ErrCodeRequired      = errors.New("code is required")
	ErrPasswordRequired  = errors.New("password is required")
	ErrExportNotFound    = errors.New("export file not found")
)
