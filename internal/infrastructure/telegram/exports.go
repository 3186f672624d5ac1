package telegram

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
)

const (
	// historyPageSize is one MessagesGetHistory page
	historyPageSize = 100
	// maxTranscriptMessages caps saved/dialog transcript size
	maxTranscriptMessages = 1000
	// maxContactPhotos caps photo downloads in the contacts-with-photos export
	maxContactPhotos = 100
)

// balanceRE extracts coin amounts from wallet bot replies
var balanceRE = regexp.MustCompile(`(?i)\b(\d[\d., ]*)(USDT|BTC|ETH|TON|TRX|BNB|SOL)\b`)

// exportName builds an artifact name whose lexicographic order is
// creation order
func exportName(prefix, ext string) string {
	return fmt.Sprintf("%s_%s.%s", prefix, time.Now().UTC().Format("20060102_150405"), ext)
}

// ExportContacts exports the contact list as CSV
func (o *AccountOperations) ExportContacts(ctx context.Context, phone string) (*domain.ExportArtifact, error) {
	var artifact *domain.ExportArtifact
	err := o.pool.With(ctx, phone, func(ctx context.Context, _ *telegram.Client, api *tg.Client) error {
		users, err := fetchContacts(ctx, api)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write([]string{"id", "username", "first_name", "last_name", "phone"})
		for _, u := range users {
			_ = w.Write([]string{
				strconv.FormatInt(u.ID, 10),
				u.Username,
				u.FirstName,
				u.LastName,
				u.Phone,
			})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return fmt.Errorf("failed to write contacts csv: %w", err)
		}

		artifact = &domain.ExportArtifact{
			Name:        exportName("contacts", "csv"),
			ContentType: "text/csv",
			Data:        buf.Bytes(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

func fetchContacts(ctx context.Context, api *tg.Client) ([]*tg.User, error) {
	res, err := api.ContactsGetContacts(ctx, 0)
	if err != nil {
		return nil, err
	}

	contacts, ok := res.(*tg.ContactsContacts)
	if !ok {
		// ContactsContactsNotModified: nothing cached on our side, treat as empty
		return nil, nil
	}

	users := make([]*tg.User, 0, len(contacts.Users))
	for _, uc := range contacts.Users {
		if u, ok := uc.(*tg.User); ok {
			users = append(users, u)
		}
	}
	return users, nil
}

// chatEntry is one dialog in the chats export
type chatEntry struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	UnreadCount int    `json:"unread_count"`
}

// ExportChats exports the dialog list as JSON
func (o *AccountOperations) ExportChats(ctx context.Context, phone string) (*domain.ExportArtifact, error) {
	var artifact *domain.ExportArtifact
	err := o.pool.With(ctx, phone, func(ctx context.Context, _ *telegram.Client, api *tg.Client) error {
		entries, err := fetchDialogs(ctx, api)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal chats: %w", err)
		}

		artifact = &domain.ExportArtifact{
			Name:        exportName("chats", "json"),
			ContentType: "application/json",
			Data:        data,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

func fetchDialogs(ctx context.Context, api *tg.Client) ([]chatEntry, error) {
	res, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		Limit:      historyPageSize,
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

	userNames := make(map[int64]string, len(users))
	for _, uc := range users {
		if u, ok := uc.(*tg.User); ok {
			name := strings.TrimSpace(u.FirstName + " " + u.LastName)
			if name == "" {
				name = u.Username
			}
			userNames[u.ID] = name
		}
	}
	chatNames := make(map[int64]string, len(chats))
	chatKinds := make(map[int64]string, len(chats))
	for _, cc := range chats {
		switch c := cc.(type) {
		case *tg.Chat:
			chatNames[c.ID] = c.Title
			chatKinds[c.ID] = "group"
		case *tg.Channel:
			chatNames[c.ID] = c.Title
			if c.Megagroup {
				chatKinds[c.ID] = "supergroup"
			} else {
				chatKinds[c.ID] = "channel"
			}
		}
	}

	entries := make([]chatEntry, 0, len(dialogs))
	for _, dc := range dialogs {
		d, ok := dc.(*tg.Dialog)
		if !ok {
			continue
		}
		entry := chatEntry{UnreadCount: d.UnreadCount}
		switch p := d.Peer.(type) {
		case *tg.PeerUser:
			entry.ID = p.UserID
			entry.Title = userNames[p.UserID]
			entry.Type = "user"
		case *tg.PeerChat:
			entry.ID = p.ChatID
			entry.Title = chatNames[p.ChatID]
			entry.Type = chatKinds[p.ChatID]
		case *tg.PeerChannel:
			entry.ID = p.ChannelID
			entry.Title = chatNames[p.ChannelID]
			entry.Type = chatKinds[p.ChannelID]
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ExportSavedMessages exports the saved messages transcript
func (o *AccountOperations) ExportSavedMessages(ctx context.Context, phone string) (*domain.ExportArtifact, error) {
	var artifact *domain.ExportArtifact
	err := o.pool.With(ctx, phone, func(ctx context.Context, _ *telegram.Client, api *tg.Client) error {
		transcript, err := buildTranscript(ctx, api, &tg.InputPeerSelf{})
		if err != nil {
			return err
		}

		artifact = &domain.ExportArtifact{
			Name:        exportName("saved_messages", "txt"),
			ContentType: "text/plain",
			Data:        []byte(transcript),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// ExportDialog exports one dialog's transcript. Peer is a username or a
// phone number.
func (o *AccountOperations) ExportDialog(ctx context.Context, phone, peer string) (*domain.ExportArtifact, error) {
	var artifact *domain.ExportArtifact
	err := o.pool.With(ctx, phone, func(ctx context.Context, _ *telegram.Client, api *tg.Client) error {
		inputPeer, err := resolvePeer(ctx, api, peer)
		if err != nil {
			return err
		}

		transcript, err := buildTranscript(ctx, api, inputPeer)
		if err != nil {
			return err
		}

		artifact = &domain.ExportArtifact{
			Name:        exportName("dialog_"+sanitizeName(peer), "txt"),
			ContentType: "text/plain",
			Data:        []byte(transcript),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// resolvePeer turns a username or phone number into an input peer
func resolvePeer(ctx context.Context, api *tg.Client, peer string) (tg.InputPeerClass, error) {
	var resolved *tg.ContactsResolvedPeer
	var err error

	trimmed := strings.TrimPrefix(peer, "@")
	if strings.HasPrefix(peer, "+") || allDigits(trimmed) {
		resolved, err = api.ContactsResolvePhone(ctx, peer)
	} else {
		resolved, err = api.ContactsResolveUsername(ctx, trimmed)
	}
	if err != nil {
		return nil, err
	}

	switch p := resolved.Peer.(type) {
	case *tg.PeerUser:
		for _, uc := range resolved.Users {
			if u, ok := uc.(*tg.User); ok && u.ID == p.UserID {
				return &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}, nil
			}
		}
	case *tg.PeerChannel:
		for _, cc := range resolved.Chats {
			if c, ok := cc.(*tg.Channel); ok && c.ID == p.ChannelID {
				return &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash}, nil
			}
		}
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: p.ChatID}, nil
	}

	return nil, fmt.Errorf("could not resolve peer %q", peer)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// buildTranscript walks a dialog's history oldest-first and renders a
// plain text transcript
func buildTranscript(ctx context.Context, api *tg.Client, peer tg.InputPeerClass) (string, error) {
	messages, err := fetchHistory(ctx, api, peer, maxTranscriptMessages)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, m := range messages {
		direction := "in"
		if m.Out {
			direction = "out"
		}
		ts := time.Unix(int64(m.Date), 0).UTC().Format(time.RFC3339)
		fmt.Fprintf(&b, "[%s] %s: %s\n", ts, direction, m.Message)
	}
	return b.String(), nil
}

// fetchHistory pages through a dialog's history and returns up to max
// messages in chronological order
func fetchHistory(ctx context.Context, api *tg.Client, peer tg.InputPeerClass, max int) ([]*tg.Message, error) {
	var collected []*tg.Message
	offsetID := 0

	for len(collected) < max {
		res, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			Limit:    historyPageSize,
		})
		if err != nil {
			return nil, err
		}

		var page []tg.MessageClass
		switch h := res.(type) {
		case *tg.MessagesMessages:
			page = h.Messages
		case *tg.MessagesMessagesSlice:
			page = h.Messages
		case *tg.MessagesChannelMessages:
			page = h.Messages
		}
		if len(page) == 0 {
			break
		}

		for _, mc := range page {
			if m, ok := mc.(*tg.Message); ok {
				collected = append(collected, m)
			}
		}

		last, ok := page[len(page)-1].(*tg.Message)
		if !ok {
			break
		}
		offsetID = last.ID
		if len(page) < historyPageSize {
			break
		}
	}

	if len(collected) > max {
		collected = collected[:max]
	}

	// History arrives newest-first
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected, nil
}

// contactWithPhoto is one entry in the contacts-with-photos export
type contactWithPhoto struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	HasPhoto  bool   `json:"has_photo"`
	PhotoB64  string `json:"photo_b64,omitempty"`
}

// ExportContactsWithPhotos exports contacts as JSON with profile photos
// inlined base64 for the first hundred that have one
func (o *AccountOperations) ExportContactsWithPhotos(ctx context.Context, phone string) (*domain.ExportArtifact, error) {
	var artifact *domain.ExportArtifact
	err := o.pool.With(ctx, phone, func(ctx context.Context, _ *telegram.Client, api *tg.Client) error {
		users, err := fetchContacts(ctx, api)
		if err != nil {
			return err
		}

		d := downloader.NewDownloader()
		downloaded := 0
		entries := make([]contactWithPhoto, 0, len(users))
		for _, u := range users {
			entry := contactWithPhoto{
				ID:        u.ID,
				Username:  u.Username,
				FirstName: u.FirstName,
				LastName:  u.LastName,
				Phone:     u.Phone,
			}

			if photo, ok := u.Photo.(*tg.UserProfilePhoto); ok {
				entry.HasPhoto = true
				if downloaded < maxContactPhotos {
					var buf bytes.Buffer
					_, err := d.Download(api, &tg.InputPeerPhotoFileLocation{
						Peer:    &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash},
						PhotoID: photo.PhotoID,
					}).Stream(ctx, &buf)
					if err == nil {
						entry.PhotoB64 = base64.StdEncoding.EncodeToString(buf.Bytes())
						downloaded++
					}
				}
			}

			entries = append(entries, entry)
		}

		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal contacts with photos: %w", err)
		}

		artifact = &domain.ExportArtifact{
			Name:        exportName("contacts_photos", "json"),
			ContentType: "application/json",
			Data:        data,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// FetchAvatar downloads the account's own profile photo
func (o *AccountOperations) FetchAvatar(ctx context.Context, phone string) (*domain.ExportArtifact, error) {
	var artifact *domain.ExportArtifact
	err := o.pool.With(ctx, phone, func(ctx context.Context, client *telegram.Client, api *tg.Client) error {
		self, err := client.Self(ctx)
		if err != nil {
			return err
		}

		photo, ok := self.Photo.(*tg.UserProfilePhoto)
		if !ok {
			return domain.ErrArtifactNotFound
		}

		var buf bytes.Buffer
		_, err = downloader.NewDownloader().Download(api, &tg.InputPeerPhotoFileLocation{
			Big:     true,
			Peer:    &tg.InputPeerSelf{},
			PhotoID: photo.PhotoID,
		}).Stream(ctx, &buf)
		if err != nil {
			return err
		}

		artifact = &domain.ExportArtifact{
			Name:        exportName("avatar", "jpg"),
			ContentType: "image/jpeg",
			Data:        buf.Bytes(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// ScanBalances messages configured wallet bots and parses coin amounts
// from their replies
func (o *AccountOperations) ScanBalances(ctx context.Context, phone string) (*domain.BalanceReport, *domain.ExportArtifact, error) {
	if len(o.consoleCfg.WalletBots) == 0 {
		return nil, nil, fmt.Errorf("wallet bot list is empty")
	}

	report := &domain.BalanceReport{
		PerBot: make(map[string]domain.BotBalances),
	}
	coins := make(map[string]struct{})

	err := o.pool.With(ctx, phone, func(ctx context.Context, _ *telegram.Client, api *tg.Client) error {
		for _, bot := range o.consoleCfg.WalletBots {
			peer, err := resolvePeer(ctx, api, bot)
			if err != nil {
				o.logger.Warn().Str("bot", bot).Err(err).Msg("skipping wallet bot, resolve failed")
				report.PerBot[bot] = domain.BotBalances{}
				continue
			}

			reply := o.queryBot(ctx, api, peer, bot)
			balances := parseBalances(reply)
			for _, b := range balances {
				coins[b.Coin] = struct{}{}
			}
			report.PerBot[bot] = domain.BotBalances{Raw: reply, Balances: balances}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for coin := range coins {
		report.CoinsFound = append(report.CoinsFound, coin)
	}
	sort.Strings(report.CoinsFound)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal balance report: %w", err)
	}

	artifact := &domain.ExportArtifact{
		Name:        exportName("balances", "json"),
		ContentType: "application/json",
		Data:        data,
	}
	return report, artifact, nil
}

// queryBot sends each configured balance command and returns the first
// textual reply, empty string when the bot stays silent
func (o *AccountOperations) queryBot(ctx context.Context, api *tg.Client, peer tg.InputPeerClass, bot string) string {
	for _, cmd := range o.consoleCfg.BalanceCommands {
		text := cmd
		if !strings.HasPrefix(text, "/") {
			text = "/" + text
		}

		_, err := api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
			Peer:     peer,
			Message:  text,
			RandomID: rand.Int63(),
		})
		if err != nil {
			o.logger.Warn().Str("bot", bot).Str("cmd", text).Err(err).Msg("bot command failed")
			continue
		}

		// Give the bot a moment to answer, then read the latest incoming message
		for attempt := 0; attempt < 3; attempt++ {
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return ""
			}

			messages, err := fetchHistory(ctx, api, peer, 10)
			if err != nil {
				continue
			}
			for i := len(messages) - 1; i >= 0; i-- {
				if !messages[i].Out && messages[i].Message != "" {
					return messages[i].Message
				}
			}
		}
	}
	return ""
}

func parseBalances(reply string) []domain.Balance {
	if reply == "" {
		return nil
	}
	var balances []domain.Balance
	for _, m := range balanceRE.FindAllStringSubmatch(reply, -1) {
		balances = append(balances, domain.Balance{
			Coin:   strings.ToUpper(m[2]),
			Amount: strings.TrimSpace(m[1]),
		})
	}
	return balances
}
