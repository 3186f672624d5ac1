package entities

import (
	"strings"
	"sync"
)

// Level is the drill-down depth of the pattern browser
type Level int

const (
	LevelChats   Level = 1
	LevelMatches Level = 2
	LevelBundle  Level = 3
)

// BundleStatus is the level-3 presentation state. Loading, error and
// empty are mutually exclusive.
type BundleStatus string

const (
	BundleStatusNone    BundleStatus = ""
	BundleStatusLoading BundleStatus = "loading"
	BundleStatusLoaded  BundleStatus = "loaded"
	BundleStatusEmpty   BundleStatus = "empty"
	BundleStatusError   BundleStatus = "error"
)

// Browser is one operator's drill-down through a pattern index: chats,
// then matches of a chat, then one match's context bundle. Each level
// pages independently; leaving a level clears only that level's state.
//
// Callers hold Lock around every transition and around reads that span
// multiple fields. The Index itself is never mutated after load.
type Browser struct {
	mu sync.Mutex

	Phone    string
	Index    *Index
	PageSize int

	Level Level

	// level 1
	ChatFilter string
	chatPages  int

	// level 2
	SelectedChatID int64
	Keyword        string
	DateFrom       int64 // unix seconds, 0 = unbounded
	DateTo         int64
	matchPages     int

	// level 3
	SelectedMatchID int
	BundleStatus    BundleStatus
	BundleError     string
	Bundle          *Bundle
}

// NewBrowser opens a browser at the chat level
func NewBrowser(phone string, index *Index, pageSize int) *Browser {
	if pageSize <= 0 {
		pageSize = 40
	}
	return &Browser{
		Phone:     phone,
		Index:     index,
		PageSize:  pageSize,
		Level:     LevelChats,
		chatPages: 1,
	}
}

// Lock takes the browser for one transition or consistent read
func (b *Browser) Lock() {
	b.mu.Lock()
}

// Unlock releases the browser
func (b *Browser) Unlock() {
	b.mu.Unlock()
}

// FilteredChats applies the chat-name substring filter
func (b *Browser) FilteredChats() []ChatSummary {
	if b.ChatFilter == "" {
		return b.Index.Chats
	}
	needle := strings.ToLower(b.ChatFilter)
	var out []ChatSummary
	for _, c := range b.Index.Chats {
		if strings.Contains(strings.ToLower(c.ChatName), needle) {
			out = append(out, c)
		}
	}
	return out
}

// VisibleChats returns the revealed pages of filtered chats and whether
// more remain
func (b *Browser) VisibleChats() ([]ChatSummary, bool) {
	filtered := b.FilteredChats()
	limit := b.chatPages * b.PageSize
	if limit >= len(filtered) {
		return filtered, false
	}
	return filtered[:limit], true
}

// SetChatFilter replaces the filter and restarts chat paging
func (b *Browser) SetChatFilter(filter string) {
	b.ChatFilter = filter
	b.chatPages = 1
}

// ShowMoreChats reveals the next chat page
func (b *Browser) ShowMoreChats() {
	b.chatPages++
}

// SelectChat drills into a chat's matches. The chat must be a member of
// the loaded index.
func (b *Browser) SelectChat(chatID int64) bool {
	if b.Index.FindChat(chatID) == nil {
		return false
	}
	b.Level = LevelMatches
	b.SelectedChatID = chatID
	b.Keyword = ""
	b.DateFrom, b.DateTo = 0, 0
	b.matchPages = 1
	b.clearBundleState()
	return true
}

// SelectedChat returns the chat the browser is drilled into
func (b *Browser) SelectedChat() *ChatSummary {
	return b.Index.FindChat(b.SelectedChatID)
}

// FilteredMatches applies the keyword and inclusive date-range filters
func (b *Browser) FilteredMatches() []BundleSummary {
	chat := b.SelectedChat()
	if chat == nil {
		return nil
	}

	needle := strings.ToLower(b.Keyword)
	var out []BundleSummary
	for _, m := range chat.Bundles {
		if needle != "" && !strings.Contains(strings.ToLower(m.TextExcerpt), needle) {
			continue
		}
		if b.DateFrom != 0 && m.Date < b.DateFrom {
			continue
		}
		if b.DateTo != 0 && m.Date > b.DateTo {
			continue
		}
		out = append(out, m)
	}
	return out
}

// VisibleMatches returns the revealed pages of filtered matches and
// whether more remain
func (b *Browser) VisibleMatches() ([]BundleSummary, bool) {
	filtered := b.FilteredMatches()
	limit := b.matchPages * b.PageSize
	if limit >= len(filtered) {
		return filtered, false
	}
	return filtered[:limit], true
}

// SetMatchFilters replaces the filters and restarts match paging
func (b *Browser) SetMatchFilters(keyword string, dateFrom, dateTo int64) {
	b.Keyword = keyword
	b.DateFrom = dateFrom
	b.DateTo = dateTo
	b.matchPages = 1
}

// ShowMoreMatches reveals the next match page
func (b *Browser) ShowMoreMatches() {
	b.matchPages++
}

// SelectMatch drills into one match's bundle and marks it loading. The
// match must belong to the selected chat.
func (b *Browser) SelectMatch(matchID int) bool {
	chat := b.SelectedChat()
	if chat == nil || chat.FindBundle(matchID) == nil {
		return false
	}
	b.Level = LevelBundle
	b.SelectedMatchID = matchID
	b.BundleStatus = BundleStatusLoading
	b.BundleError = ""
	b.Bundle = nil
	return true
}

// SetBundleLoaded resolves the loading state with the fetched bundle
func (b *Browser) SetBundleLoaded(bundle *Bundle) {
	if bundle == nil || (len(bundle.Before) == 0 && len(bundle.After) == 0 && bundle.Match.Text == "") {
		b.BundleStatus = BundleStatusEmpty
		b.Bundle = nil
		return
	}
	b.BundleStatus = BundleStatusLoaded
	b.Bundle = bundle
	b.BundleError = ""
}

// SetBundleError resolves the loading state with a failure
func (b *Browser) SetBundleError(message string) {
	b.BundleStatus = BundleStatusError
	b.BundleError = message
	b.Bundle = nil
}

// Retry re-enters loading, keeping the selected match
func (b *Browser) Retry() bool {
	if b.Level != LevelBundle {
		return false
	}
	b.BundleStatus = BundleStatusLoading
	b.BundleError = ""
	b.Bundle = nil
	return true
}

// Back ascends one level, clearing only the state of the level being
// left
func (b *Browser) Back() {
	switch b.Level {
	case LevelBundle:
		b.SelectedMatchID = 0
		b.clearBundleState()
		b.Level = LevelMatches
	case LevelMatches:
		b.SelectedChatID = 0
		b.Keyword = ""
		b.DateFrom, b.DateTo = 0, 0
		b.matchPages = 0
		b.Level = LevelChats
	}
}

func (b *Browser) clearBundleState() {
	b.BundleStatus = BundleStatusNone
	b.BundleError = ""
	b.Bundle = nil
}
