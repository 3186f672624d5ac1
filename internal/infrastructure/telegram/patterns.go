package telegram

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"

	patternentities "github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/entities"
)

const (
	// maxPatternChats bounds the dialog sweep
	maxPatternChats = 50
	// maxPatternMessages bounds history depth per chat
	maxPatternMessages = 500
	// contextRadius is how many messages are captured around a match
	contextRadius = 5

	excerptRunes = 160
	previewRunes = 80
)

// SearchPatterns sweeps recent dialogs for the given keywords and
// returns an index of matching chats plus a context bundle per match
func (o *AccountOperations) SearchPatterns(ctx context.Context, phone string, patterns []string) (*patternentities.SearchOutcome, error) {
	if len(patterns) == 0 {
		patterns = o.consoleCfg.SearchPatterns
	}
	if len(patterns) == 0 {
		return nil, errors.New("no search patterns configured")
	}

	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}

	outcome := &patternentities.SearchOutcome{
		Index: patternentities.Index{
			Patterns:    patterns,
			GeneratedAt: time.Now().UTC(),
		},
	}

	err := o.pool.With(ctx, phone, func(ctx context.Context, _ *telegram.Client, api *tg.Client) error {
		targets, err := patternTargets(ctx, api)
		if err != nil {
			return err
		}

		for _, t := range targets {
			messages, err := fetchHistory(ctx, api, t.peer, maxPatternMessages)
			if err != nil {
				o.logger.Warn().Int64("chat_id", t.id).Err(err).Msg("skipping chat, history fetch failed")
				continue
			}

			summary, bundles := scanChat(t, messages, patterns, lowered)
			if len(summary.Bundles) > 0 {
				outcome.Index.Chats = append(outcome.Index.Chats, summary)
				outcome.Bundles = append(outcome.Bundles, bundles...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(outcome.Index.Chats, func(i, j int) bool {
		return len(outcome.Index.Chats[i].Bundles) > len(outcome.Index.Chats[j].Bundles)
	})
	return outcome, nil
}

type patternTarget struct {
	id   int64
	name string
	peer tg.InputPeerClass
}

// patternTargets lists the dialogs worth sweeping, newest first
func patternTargets(ctx context.Context, api *tg.Client) ([]patternTarget, error) {
	res, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		Limit:      maxPatternChats,
		OffsetPeer: &tg.InputPeerEmpty{},
	})
	if err != nil {
		return nil, err
	}

	var (
		dialogs []tg.DialogClass
		users   []tg.UserClass
		chats   []tg.ChatClass
	)
	switch d := res.(type) {
	case *tg.MessagesDialogs:
		dialogs, users, chats = d.Dialogs, d.Users, d.Chats
	case *tg.MessagesDialogsSlice:
		dialogs, users, chats = d.Dialogs, d.Users, d.Chats
	default:
		return nil, nil
	}

	userByID := make(map[int64]*tg.User, len(users))
	for _, uc := range users {
		if u, ok := uc.(*tg.User); ok {
			userByID[u.ID] = u
		}
	}
	chatByID := make(map[int64]*tg.Chat, len(chats))
	channelByID := make(map[int64]*tg.Channel, len(chats))
	for _, cc := range chats {
		switch c := cc.(type) {
		case *tg.Chat:
			chatByID[c.ID] = c
		case *tg.Channel:
			channelByID[c.ID] = c
		}
	}

	targets := make([]patternTarget, 0, len(dialogs))
	for _, dc := range dialogs {
		d, ok := dc.(*tg.Dialog)
		if !ok {
			continue
		}
		switch p := d.Peer.(type) {
		case *tg.PeerUser:
			u, ok := userByID[p.UserID]
			if !ok || u.Bot {
				continue
			}
			name := strings.TrimSpace(u.FirstName + " " + u.LastName)
			if name == "" {
				name = u.Username
			}
			targets = append(targets, patternTarget{
				id:   u.ID,
				name: name,
				peer: &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash},
			})
		case *tg.PeerChat:
			c, ok := chatByID[p.ChatID]
			if !ok {
				continue
			}
			targets = append(targets, patternTarget{
				id:   c.ID,
				name: c.Title,
				peer: &tg.InputPeerChat{ChatID: c.ID},
			})
		case *tg.PeerChannel:
			c, ok := channelByID[p.ChannelID]
			if !ok {
				continue
			}
			targets = append(targets, patternTarget{
				id:   c.ID,
				name: c.Title,
				peer: &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash},
			})
		}
	}
	return targets, nil
}

// scanChat walks one chat's history chronologically and captures a
// bundle of surrounding messages for every pattern hit
func scanChat(t patternTarget, history []*tg.Message, patterns, lowered []string) (patternentities.ChatSummary, []patternentities.Bundle) {
	summary := patternentities.ChatSummary{ChatID: t.id, ChatName: t.name}
	var bundles []patternentities.Bundle

	converted := make([]patternentities.Message, len(history))
	for i, m := range history {
		converted[i] = toPatternMessage(m)
	}

	for i, msg := range converted {
		pattern, ok := matchPattern(msg.Text, patterns, lowered)
		if !ok {
			continue
		}

		before := converted[maxInt(0, i-contextRadius):i]
		after := converted[i+1 : minInt(len(converted), i+1+contextRadius)]

		bundle := patternentities.Bundle{
			Meta: patternentities.BundleMeta{
				ChatID:   t.id,
				ChatName: t.name,
				MatchID:  msg.ID,
				Pattern:  pattern,
			},
			Match:  msg,
			Before: append([]patternentities.Message(nil), before...),
			After:  append([]patternentities.Message(nil), after...),
		}
		bundles = append(bundles, bundle)

		summary.Bundles = append(summary.Bundles, patternentities.BundleSummary{
			MatchID:        msg.ID,
			Date:           msg.Date,
			TextExcerpt:    truncateRunes(msg.Text, excerptRunes),
			ContextPreview: contextPreview(before, after),
			BeforeCount:    len(before),
			AfterCount:     len(after),
		})
	}
	return summary, bundles
}

func toPatternMessage(m *tg.Message) patternentities.Message {
	from := ""
	if u, ok := m.FromID.(*tg.PeerUser); ok {
		from = "user:" + strconv.FormatInt(u.UserID, 10)
	}
	return patternentities.Message{
		ID:   m.ID,
		Date: int64(m.Date),
		From: from,
		Out:  m.Out,
		Text: m.Message,
	}
}

func matchPattern(text string, patterns, lowered []string) (string, bool) {
	if text == "" {
		return "", false
	}
	lt := strings.ToLower(text)
	for i, p := range lowered {
		if strings.Contains(lt, p) {
			return patterns[i], true
		}
	}
	return "", false
}

// contextPreview summarizes the neighborhood as the nearest non-empty
// message on either side
func contextPreview(before, after []patternentities.Message) string {
	var parts []string
	for i := len(before) - 1; i >= 0; i-- {
		if before[i].Text != "" {
			parts = append(parts, truncateRunes(before[i].Text, previewRunes))
			break
		}
	}
	for _, m := range after {
		if m.Text != "" {
			parts = append(parts, truncateRunes(m.Text, previewRunes))
			break
		}
	}
	return strings.Join(parts, " … ")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
