package entities

import "time"

// Message is one message captured around a pattern match
type Message struct {
	ID   int    `json:"id"`
	Date int64  `json:"date"`
	From string `json:"from,omitempty"`
	Out  bool   `json:"out,omitempty"`
	Text string `json:"text"`
}

// BundleSummary is the index entry for one match
type BundleSummary struct {
	MatchID        int    `json:"match_id"`
	Date           int64  `json:"date"`
	TextExcerpt    string `json:"text_excerpt"`
	ContextPreview string `json:"context_preview,omitempty"`
	BeforeCount    int    `json:"before_count"`
	AfterCount     int    `json:"after_count"`
}

// ChatSummary groups the matches found in one chat
type ChatSummary struct {
	ChatID   int64           `json:"chat_id"`
	ChatName string          `json:"chat_name"`
	Bundles  []BundleSummary `json:"bundles"`
}

// Index is the full result listing of a pattern search, ordered by
// descending match count per chat
type Index struct {
	Patterns    []string      `json:"patterns"`
	Chats       []ChatSummary `json:"chats"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// BundleMeta identifies a bundle within the index
type BundleMeta struct {
	ChatID   int64  `json:"chat_id"`
	ChatName string `json:"chat_name"`
	MatchID  int    `json:"match_id"`
	Pattern  string `json:"pattern"`
}

// Bundle is the full context of one match: the matched message plus the
// surrounding messages
type Bundle struct {
	Meta   BundleMeta `json:"meta"`
	Match  Message    `json:"match"`
	Before []Message  `json:"before"`
	After  []Message  `json:"after"`
}

// SearchOutcome is everything a pattern search produced
type SearchOutcome struct {
	Index   Index
	Bundles []Bundle
}

// MatchCount returns the total number of matches in the index
func (i *Index) MatchCount() int {
	n := 0
	for _, c := range i.Chats {
		n += len(c.Bundles)
	}
	return n
}

// FindChat returns the chat summary for id, nil when absent
func (i *Index) FindChat(chatID int64) *ChatSummary {
	for idx := range i.Chats {
		if i.Chats[idx].ChatID == chatID {
			return &i.Chats[idx]
		}
	}
	return nil
}

// FindBundle returns the bundle summary for matchID, nil when absent
func (c *ChatSummary) FindBundle(matchID int) *BundleSummary {
	for idx := range c.Bundles {
		if c.Bundles[idx].MatchID == matchID {
			return &c.Bundles[idx]
		}
	}
	return nil
}
