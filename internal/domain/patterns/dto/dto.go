package dto

import "github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/entities"

// RunSearchRequest triggers a pattern search
type RunSearchRequest struct {
	PhoneNumber string   `json:"phone_number"`
	Patterns    []string `json:"patterns,omitempty"`
	Force       bool     `json:"force,omitempty"`
}

// OpenBrowserRequest opens a drill-down browser over the latest index
type OpenBrowserRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// ChatFilterRequest sets the level-1 chat-name filter
type ChatFilterRequest struct {
	Filter string `json:"filter"`
}

// SelectChatRequest drills into one chat
type SelectChatRequest struct {
	ChatID int64 `json:"chat_id"`
}

// MatchFiltersRequest sets the level-2 keyword and date-range filters.
// Dates are unix seconds, zero means unbounded; the range is inclusive.
type MatchFiltersRequest struct {
	Keyword  string `json:"keyword,omitempty"`
	DateFrom int64  `json:"date_from,omitempty"`
	DateTo   int64  `json:"date_to,omitempty"`
}

// SelectMatchRequest drills into one match
type SelectMatchRequest struct {
	MatchID int `json:"match_id"`
}

// BrowserView is the rendered browser state after a transition
type BrowserView struct {
	Level int `json:"level"`

	ChatFilter   string                 `json:"chat_filter,omitempty"`
	Chats        []entities.ChatSummary `json:"chats,omitempty"`
	HasMoreChats bool                   `json:"has_more_chats,omitempty"`

	SelectedChatID int64                    `json:"selected_chat_id,omitempty"`
	ChatName       string                   `json:"chat_name,omitempty"`
	Keyword        string                   `json:"keyword,omitempty"`
	DateFrom       int64                    `json:"date_from,omitempty"`
	DateTo         int64                    `json:"date_to,omitempty"`
	Matches        []entities.BundleSummary `json:"matches,omitempty"`
	HasMoreMatches bool                     `json:"has_more_matches,omitempty"`

	SelectedMatchID int              `json:"selected_match_id,omitempty"`
	BundleStatus    string           `json:"bundle_status,omitempty"`
	BundleError     string           `json:"bundle_error,omitempty"`
	Bundle          *entities.Bundle `json:"bundle,omitempty"`
}

// RenderBrowser builds the view for the browser's current level. It
// holds the browser while reading so a concurrent transition cannot
// tear the snapshot; the view's slices and bundle pointer refer to
// data the browser never mutates in place.
func RenderBrowser(b *entities.Browser) BrowserView {
	b.Lock()
	defer b.Unlock()

	view := BrowserView{
		Level:      int(b.Level),
		ChatFilter: b.ChatFilter,
	}

	chats, moreChats := b.VisibleChats()
	view.Chats = chats
	view.HasMoreChats = moreChats

	if b.Level >= entities.LevelMatches {
		view.SelectedChatID = b.SelectedChatID
		if chat := b.SelectedChat(); chat != nil {
			view.ChatName = chat.ChatName
		}
		view.Keyword = b.Keyword
		view.DateFrom = b.DateFrom
		view.DateTo = b.DateTo

		matches, moreMatches := b.VisibleMatches()
		view.Matches = matches
		view.HasMoreMatches = moreMatches
	}

	if b.Level == entities.LevelBundle {
		view.SelectedMatchID = b.SelectedMatchID
		view.BundleStatus = string(b.BundleStatus)
		view.BundleError = b.BundleError
		view.Bundle = b.Bundle
	}

	return view
}

// ErrorResponse generic error response
type ErrorResponse struct {
	Error string `json:"error"`
}
