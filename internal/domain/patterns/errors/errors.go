package errors

import "errors"

var (
	ErrConsoleIDRequired = errors.New("console id is required")
	ErrPhoneRequired     = errors.New("phone number is required")
	ErrNoIndex           = errors.New("no pattern index stored for this session")
	ErrBrowserNotFound   = errors.New("no open pattern browser for this console")
	ErrChatNotInIndex    = errors.New("chat is not part of the loaded index")
	ErrMatchNotInChat    = errors.New("match is not part of the selected chat")
	ErrBundleNotFound    = errors.New("bundle not found")
	ErrWrongLevel        = errors.New("operation not valid at this browser level")
)
