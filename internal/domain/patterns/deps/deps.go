package deps

import (
	"context"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/entities"
)

// Guard serializes expensive triggers per console instance
type Guard interface {
	TryAcquire(consoleID string) bool
	Release(consoleID string)
}

// SearchResult is the terminal outcome of a pattern search trigger
type SearchResult struct {
	Success        bool   `json:"success"`
	Busy           bool   `json:"busy,omitempty"`
	Existing       bool   `json:"existing,omitempty"`
	ReauthRequired bool   `json:"reauth_required,omitempty"`
	IndexKey       string `json:"index_key,omitempty"`
	MatchCount     int    `json:"match_count"`
	Hint           string `json:"hint,omitempty"`
	Detail         string `json:"detail,omitempty"`
}

// PatternService runs pattern searches and drives the drill-down
// browser over their results
type PatternService interface {
	// RunSearch sweeps the session's dialogs for the patterns and stores
	// the index and bundles as artifacts. A stored index answers the
	// trigger unless force is set.
	RunSearch(ctx context.Context, consoleID, phone string, patterns []string, force bool) (*SearchResult, error)

	// IndexFor returns the latest stored index
	IndexFor(ctx context.Context, phone string) (*entities.Index, error)

	// BundleFor returns one stored context bundle
	BundleFor(ctx context.Context, phone string, chatID int64, matchID int) (*entities.Bundle, error)

	// Browser state transitions, keyed by console id
	OpenBrowser(ctx context.Context, consoleID, phone string) (*entities.Browser, error)
	SetChatFilter(ctx context.Context, consoleID, filter string) (*entities.Browser, error)
	ShowMoreChats(ctx context.Context, consoleID string) (*entities.Browser, error)
	SelectChat(ctx context.Context, consoleID string, chatID int64) (*entities.Browser, error)
	SetMatchFilters(ctx context.Context, consoleID, keyword string, dateFrom, dateTo int64) (*entities.Browser, error)
	ShowMoreMatches(ctx context.Context, consoleID string) (*entities.Browser, error)
	SelectMatch(ctx context.Context, consoleID string, matchID int) (*entities.Browser, error)
	Retry(ctx context.Context, consoleID string) (*entities.Browser, error)
	Back(ctx context.Context, consoleID string) (*entities.Browser, error)
	CloseBrowser(ctx context.Context, consoleID string) error
}
