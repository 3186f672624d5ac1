package telegram

import (
	"context"
	"errors"

	"github.com/gotd/td/tgerr"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
)

// mapRemoteError classifies a Telegram API failure into a domain.RemoteError.
// Callers branch on the hint, never on error message text.
func mapRemoteError(err error) error {
	if err == nil {
		return nil
	}

	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &domain.RemoteError{
			Hint:       domain.HintRateLimited,
			RetryAfter: wait,
			Err:        err,
		}
	}

	switch {
	case tgerr.Is(err, "PHONE_NUMBER_INVALID", "PHONE_NUMBER_BANNED", "PHONE_NUMBER_FLOOD"):
		return domain.NewRemoteError(domain.HintInvalidPhone, err)
	case tgerr.Is(err, "PHONE_CODE_INVALID", "PHONE_CODE_EMPTY", "CODE_INVALID", "EMAIL_CODE_INVALID"):
		return domain.NewRemoteError(domain.HintInvalidCode, err)
	case tgerr.Is(err, "PHONE_CODE_EXPIRED", "EMAIL_TOKEN_EXPIRED", "CODE_EXPIRED"):
		return domain.NewRemoteError(domain.HintExpiredCode, err)
	case tgerr.Is(err, "PASSWORD_HASH_INVALID", "PASSWORD_EMPTY", "SRP_PASSWORD_CHANGED"):
		return domain.NewRemoteError(domain.HintWrongPassword, err)
	case tgerr.Is(err, "AUTH_KEY_UNREGISTERED", "AUTH_KEY_INVALID", "SESSION_REVOKED", "SESSION_EXPIRED", "USER_DEACTIVATED", "USER_DEACTIVATED_BAN"):
		return domain.NewRemoteError(domain.HintSessionUnauthorized, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewRemoteError(domain.HintTransport, err)
	}

	var tgErr *tgerr.Error
	if errors.As(err, &tgErr) {
		// Known API error without a dedicated hint: surface as-is so callers
		// still see the RPC type through Unwrap
		return domain.NewRemoteError(domain.HintTransport, err)
	}

	return domain.NewRemoteError(domain.HintTransport, err)
}
