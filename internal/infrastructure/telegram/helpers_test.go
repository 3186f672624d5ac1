package telegram

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/require"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	patternentities "github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/entities"
)

func TestMapRemoteErrorHints(t *testing.T) {
	tests := []struct {
		name string
		err  error
		hint domain.Hint
	}{
		{"invalid phone", tgerr.New(400, "PHONE_NUMBER_INVALID"), domain.HintInvalidPhone},
		{"banned phone", tgerr.New(400, "PHONE_NUMBER_BANNED"), domain.HintInvalidPhone},
		{"invalid code", tgerr.New(400, "PHONE_CODE_INVALID"), domain.HintInvalidCode},
		{"expired code", tgerr.New(400, "PHONE_CODE_EXPIRED"), domain.HintExpiredCode},
		{"wrong password", tgerr.New(400, "PASSWORD_HASH_INVALID"), domain.HintWrongPassword},
		{"revoked session", tgerr.New(401, "SESSION_REVOKED"), domain.HintSessionUnauthorized},
		{"dead auth key", tgerr.New(401, "AUTH_KEY_UNREGISTERED"), domain.HintSessionUnauthorized},
		{"deadline", context.DeadlineExceeded, domain.HintTransport},
		{"unknown rpc error", tgerr.New(400, "SOMETHING_ODD"), domain.HintTransport},
		{"plain error", errors.New("dial tcp: refused"), domain.HintTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := mapRemoteError(tt.err)
			require.Equal(t, tt.hint, domain.HintOf(mapped))
			// the original error stays reachable through the chain
			require.ErrorIs(t, mapped, tt.err)
		})
	}

	require.NoError(t, mapRemoteError(nil))
}

func TestMapRemoteErrorFloodWait(t *testing.T) {
	mapped := mapRemoteError(tgerr.New(420, "FLOOD_WAIT_30"))
	require.Equal(t, domain.HintRateLimited, domain.HintOf(mapped))
	require.Equal(t, 30*time.Second, domain.RetryAfterOf(mapped))
}

func TestParseBalances(t *testing.T) {
	reply := "Your wallet:\n12.5 TON\n0.001 btc\nTotal: 1 000,25 usdt"
	balances := parseBalances(reply)
	require.Len(t, balances, 3)
	require.Equal(t, domain.Balance{Coin: "TON", Amount: "12.5"}, balances[0])
	require.Equal(t, "BTC", balances[1].Coin)
	require.Equal(t, "USDT", balances[2].Coin)

	require.Nil(t, parseBalances(""))
	require.Nil(t, parseBalances("no balances to see here"))
}

func TestSanitizeName(t *testing.T) {
	require.Equal(t, "some_user42", sanitizeName("some user42"))
	require.Equal(t, "_durov", sanitizeName("@durov"))
	require.Equal(t, "_79991234567", sanitizeName("+79991234567"))
}

func TestAllDigits(t *testing.T) {
	require.True(t, allDigits("79991234567"))
	require.False(t, allDigits("799912a4567"))
	require.False(t, allDigits(""))
}

func TestExportNameOrdering(t *testing.T) {
	name := exportName("contacts", "csv")
	require.Regexp(t, regexp.MustCompile(`^contacts_\d{8}_\d{6}\.csv$`), name)
}

func TestMatchPattern(t *testing.T) {
	patterns := []string{"Seed", "wallet"}
	lowered := []string{"seed", "wallet"}

	got, ok := matchPattern("my SEED phrase", patterns, lowered)
	require.True(t, ok)
	require.Equal(t, "Seed", got)

	_, ok = matchPattern("nothing interesting", patterns, lowered)
	require.False(t, ok)

	_, ok = matchPattern("", patterns, lowered)
	require.False(t, ok)
}

func TestTruncateRunes(t *testing.T) {
	require.Equal(t, "short", truncateRunes("short", 10))
	require.Equal(t, "абв…", truncateRunes("абвгд", 3))
}

func TestContextPreview(t *testing.T) {
	before := []patternentities.Message{
		{Text: "earlier"},
		{Text: ""}, // service message directly before the match
	}
	after := []patternentities.Message{
		{Text: ""},
		{Text: "later"},
	}

	require.Equal(t, "earlier … later", contextPreview(before, after))
	require.Equal(t, "later", contextPreview(nil, after))
	require.Equal(t, "", contextPreview(nil, nil))
}
