package business

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/console/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/console/entities"
	consoleerrors "github.com/arhteh596/granovskicrm-sub001/internal/domain/console/errors"
	sessiondeps "github.com/arhteh596/granovskicrm-sub001/internal/domain/session/deps"
	sessionentities "github.com/arhteh596/granovskicrm-sub001/internal/domain/session/entities"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/metrics"
)

// lastExportKinds are the artifact families surfaced by LastExports
var lastExportKinds = []entities.ExportKind{
	entities.KindContacts,
	entities.KindChats,
	entities.KindSavedMessages,
	entities.KindDialog,
	entities.KindContactsPhotos,
	entities.KindAvatar,
	entities.KindBalances,
	entities.KindPatterns,
}

// opOutcome is what one dispatched operation body produces
type opOutcome struct {
	payload     interface{}
	artifactKey string
	existing    bool
}

// ConsoleUseCase funnels every operator-triggered operation through one
// pipeline: single-flight admission, execution, structural failure
// classification, audit. Remote failures never escape as errors; they
// land in the OperationResult.
type ConsoleUseCase struct {
	guard    deps.Guard
	cache    deps.ExportCache
	accounts domain.AccountGateway
	store    domain.ArtifactStore
	sessions sessiondeps.SessionRepository
	audit    domain.AuditProducer
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewConsoleUseCase creates the console dispatcher
func NewConsoleUseCase(
	guard deps.Guard,
	cache deps.ExportCache,
	accounts domain.AccountGateway,
	store domain.ArtifactStore,
	sessions sessiondeps.SessionRepository,
	audit domain.AuditProducer,
	logger zerolog.Logger,
) *ConsoleUseCase {
	return &ConsoleUseCase{
		guard:    guard,
		cache:    cache,
		accounts: accounts,
		store:    store,
		sessions: sessions,
		audit:    audit,
		metrics:  metrics.GetDefaultMetrics(),
		logger:   logger.With().Str("usecase", "console").Logger(),
	}
}

// dispatch runs one operation under the single-flight guard and returns
// a terminal result on every path
func (uc *ConsoleUseCase) dispatch(
	ctx context.Context,
	consoleID, phone, operation string,
	fn func(ctx context.Context) (*opOutcome, error),
) (*entities.OperationResult, error) {
	if consoleID == "" {
		return nil, consoleerrors.ErrConsoleIDRequired
	}
	if phone == "" {
		return nil, consoleerrors.ErrPhoneRequired
	}

	result := &entities.OperationResult{
		Operation: operation,
		StartedAt: time.Now(),
	}

	if !uc.guard.TryAcquire(consoleID) {
		result.Busy = true
		uc.logger.Debug().
			Str("console_id", consoleID).
			Str("operation", operation).
			Msg("operation dropped, console busy")
		return result, nil
	}
	defer uc.guard.Release(consoleID)

	outcome, err := fn(ctx)
	result.Duration = time.Since(result.StartedAt).Seconds()

	if err != nil {
		hint := domain.HintOf(err)
		result.Hint = string(hint)
		result.Detail = err.Error()
		if hint == domain.HintSessionUnauthorized {
			result.ReauthRequired = true
			uc.metrics.RecordReauthRequired()
		}
		uc.metrics.RecordOperationError(operation, string(hint))
		uc.appendLog(ctx, phone, operation, "", false, err.Error())
		uc.logger.Warn().
			Str("operation", operation).
			Str("hint", string(hint)).
			Err(err).
			Msg("operation failed")
		return result, nil
	}

	result.Success = true
	if outcome != nil {
		result.Payload = outcome.payload
		result.ArtifactKey = outcome.artifactKey
		result.Existing = outcome.existing
	}

	uc.metrics.RecordOperation(operation, result.Duration)

	if err := uc.sessions.TouchLastUsed(ctx, phone); err != nil {
		uc.logger.Debug().Err(err).Msg("failed to touch session")
	}
	uc.appendLog(ctx, phone, operation, result.ArtifactKey, true, "")
	uc.publishAudit(ctx, phone, operation, result.ArtifactKey)

	return result, nil
}

func (uc *ConsoleUseCase) appendLog(ctx context.Context, phone, operation, artifactKey string, success bool, detail string) {
	err := uc.sessions.AppendLog(ctx, &sessionentities.ExportLogEntry{
		PhoneNumber: phone,
		Operation:   operation,
		ArtifactKey: artifactKey,
		Success:     success,
		Detail:      detail,
	})
	if err != nil {
		uc.logger.Debug().Err(err).Msg("failed to append operation log")
	}
}

func (uc *ConsoleUseCase) publishAudit(ctx context.Context, phone, operation, artifactKey string) {
	if uc.audit == nil {
		return
	}
	err := uc.audit.SendOperation(ctx, &domain.AuditEvent{
		PhoneNumber: phone,
		Operation:   operation,
		Artifact:    artifactKey,
		Success:     true,
	})
	if err != nil {
		uc.logger.Warn().Err(err).Msg("failed to publish audit event")
	}
}

// dispatchExport wraps dispatch with the export cache: unless forced, a
// stored artifact of the kind answers the trigger without any Telegram
// call
func (uc *ConsoleUseCase) dispatchExport(
	ctx context.Context,
	consoleID, phone string,
	kind entities.ExportKind,
	force bool,
	produce func(ctx context.Context) (*domain.ExportArtifact, interface{}, error),
) (*entities.OperationResult, error) {
	operation := "export_" + string(kind)

	return uc.dispatch(ctx, consoleID, phone, operation, func(ctx context.Context) (*opOutcome, error) {
		if !force {
			if prior, ok := uc.cache.Lookup(ctx, phone, kind); ok {
				return &opOutcome{
					payload:     toExportFile(prior, kind),
					artifactKey: prior.Key,
					existing:    true,
				}, nil
			}
		}

		artifact, payload, err := produce(ctx)
		if err != nil {
			return nil, err
		}

		key, err := uc.store.Put(ctx, phone, string(kind), artifact.Name, artifact.ContentType, artifact.Data)
		if err != nil {
			return nil, err
		}

		if payload == nil {
			payload = entities.ExportFile{
				Key:  key,
				Name: artifact.Name,
				Kind: string(kind),
				Size: int64(len(artifact.Data)),
			}
		}
		return &opOutcome{payload: payload, artifactKey: key}, nil
	})
}

func toExportFile(a *domain.Artifact, kind entities.ExportKind) entities.ExportFile {
	return entities.ExportFile{
		Key:          a.Key,
		Name:         a.Name,
		Kind:         string(kind),
		Size:         a.Size,
		LastModified: a.LastModified,
	}
}

// Profile fetches the account's own info
func (uc *ConsoleUseCase) Profile(ctx context.Context, consoleID, phone string) (*entities.OperationResult, error) {
	return uc.dispatch(ctx, consoleID, phone, "profile", func(ctx context.Context) (*opOutcome, error) {
		info, err := uc.accounts.UserInfo(ctx, phone)
		if err != nil {
			return nil, err
		}
		return &opOutcome{payload: info}, nil
	})
}

// ExportContacts exports the contact list
func (uc *ConsoleUseCase) ExportContacts(ctx context.Context, consoleID, phone string, force bool) (*entities.OperationResult, error) {
	return uc.dispatchExport(ctx, consoleID, phone, entities.KindContacts, force, func(ctx context.Context) (*domain.ExportArtifact, interface{}, error) {
		artifact, err := uc.accounts.ExportContacts(ctx, phone)
		return artifact, nil, err
	})
}

// ExportChats exports the dialog list
func (uc *ConsoleUseCase) ExportChats(ctx context.Context, consoleID, phone string, force bool) (*entities.OperationResult, error) {
	return uc.dispatchExport(ctx, consoleID, phone, entities.KindChats, force, func(ctx context.Context) (*domain.ExportArtifact, interface{}, error) {
		artifact, err := uc.accounts.ExportChats(ctx, phone)
		return artifact, nil, err
	})
}

// ExportSavedMessages exports the saved messages transcript
func (uc *ConsoleUseCase) ExportSavedMessages(ctx context.Context, consoleID, phone string, force bool) (*entities.OperationResult, error) {
	return uc.dispatchExport(ctx, consoleID, phone, entities.KindSavedMessages, force, func(ctx context.Context) (*domain.ExportArtifact, interface{}, error) {
		artifact, err := uc.accounts.ExportSavedMessages(ctx, phone)
		return artifact, nil, err
	})
}

// ExportDialog exports one dialog's transcript. Never cached: the peer
// varies per trigger.
func (uc *ConsoleUseCase) ExportDialog(ctx context.Context, consoleID, phone, peer string) (*entities.OperationResult, error) {
	if strings.TrimSpace(peer) == "" {
		return nil, consoleerrors.ErrPeerRequired
	}
	return uc.dispatchExport(ctx, consoleID, phone, entities.KindDialog, true, func(ctx context.Context) (*domain.ExportArtifact, interface{}, error) {
		artifact, err := uc.accounts.ExportDialog(ctx, phone, peer)
		return artifact, nil, err
	})
}

// ExportContactsWithPhotos exports contacts with inlined photos
func (uc *ConsoleUseCase) ExportContactsWithPhotos(ctx context.Context, consoleID, phone string, force bool) (*entities.OperationResult, error) {
	return uc.dispatchExport(ctx, consoleID, phone, entities.KindContactsPhotos, force, func(ctx context.Context) (*domain.ExportArtifact, interface{}, error) {
		artifact, err := uc.accounts.ExportContactsWithPhotos(ctx, phone)
		return artifact, nil, err
	})
}

// FetchAvatar downloads the account's profile photo
func (uc *ConsoleUseCase) FetchAvatar(ctx context.Context, consoleID, phone string, force bool) (*entities.OperationResult, error) {
	return uc.dispatchExport(ctx, consoleID, phone, entities.KindAvatar, force, func(ctx context.Context) (*domain.ExportArtifact, interface{}, error) {
		artifact, err := uc.accounts.FetchAvatar(ctx, phone)
		return artifact, nil, err
	})
}

// ScanBalances messages wallet bots and stores the parsed report
func (uc *ConsoleUseCase) ScanBalances(ctx context.Context, consoleID, phone string, force bool) (*entities.OperationResult, error) {
	return uc.dispatchExport(ctx, consoleID, phone, entities.KindBalances, force, func(ctx context.Context) (*domain.ExportArtifact, interface{}, error) {
		report, artifact, err := uc.accounts.ScanBalances(ctx, phone)
		if err != nil {
			return nil, nil, err
		}
		return artifact, report, nil
	})
}

// TwoFAStatus fetches the account's 2FA state
func (uc *ConsoleUseCase) TwoFAStatus(ctx context.Context, consoleID, phone string) (*entities.OperationResult, error) {
	return uc.dispatch(ctx, consoleID, phone, "twofa_status", func(ctx context.Context) (*opOutcome, error) {
		status, err := uc.accounts.TwoFAStatus(ctx, phone)
		if err != nil {
			return nil, err
		}
		return &opOutcome{payload: status}, nil
	})
}

// UpdatePassword changes the 2FA password
func (uc *ConsoleUseCase) UpdatePassword(ctx context.Context, consoleID, phone, current, newPassword, hint string) (*entities.OperationResult, error) {
	if newPassword == "" {
		return nil, consoleerrors.ErrPasswordRequired
	}
	return uc.dispatch(ctx, consoleID, phone, "update_password", func(ctx context.Context) (*opOutcome, error) {
		return nil, uc.accounts.UpdatePassword(ctx, phone, current, newPassword, hint)
	})
}

// SetOrUpdate2FAEmail sets the 2FA recovery email
func (uc *ConsoleUseCase) SetOrUpdate2FAEmail(ctx context.Context, consoleID, phone, email string) (*entities.OperationResult, error) {
	if strings.TrimSpace(email) == "" {
		return nil, consoleerrors.ErrEmailRequired
	}
	return uc.dispatch(ctx, consoleID, phone, "set_2fa_email", func(ctx context.Context) (*opOutcome, error) {
		code, err := uc.accounts.SetOrUpdate2FAEmail(ctx, phone, email)
		if err != nil {
			return nil, err
		}
		return &opOutcome{payload: code}, nil
	})
}

// LoginEmailStatus fetches the login email state
func (uc *ConsoleUseCase) LoginEmailStatus(ctx context.Context, consoleID, phone string) (*entities.OperationResult, error) {
	return uc.dispatch(ctx, consoleID, phone, "login_email_status", func(ctx context.Context) (*opOutcome, error) {
		status, err := uc.accounts.LoginEmailStatus(ctx, phone)
		if err != nil {
			return nil, err
		}
		return &opOutcome{payload: status}, nil
	})
}

// SendLoginEmailCode starts a login email change
func (uc *ConsoleUseCase) SendLoginEmailCode(ctx context.Context, consoleID, phone, email string) (*entities.OperationResult, error) {
	if strings.TrimSpace(email) == "" {
		return nil, consoleerrors.ErrEmailRequired
	}
	return uc.dispatch(ctx, consoleID, phone, "send_login_email_code", func(ctx context.Context) (*opOutcome, error) {
		code, err := uc.accounts.SendLoginEmailCode(ctx, phone, email)
		if err != nil {
			return nil, err
		}
		return &opOutcome{payload: code}, nil
	})
}

// VerifyLoginEmail completes a login email change
func (uc *ConsoleUseCase) VerifyLoginEmail(ctx context.Context, consoleID, phone, code string) (*entities.OperationResult, error) {
	if code == "" {
		return nil, consoleerrors.ErrCodeRequired
	}
	return uc.dispatch(ctx, consoleID, phone, "verify_login_email", func(ctx context.Context) (*opOutcome, error) {
		return nil, uc.accounts.VerifyLoginEmail(ctx, phone, code)
	})
}

// AutoRotateLoginEmail starts a change to the next rotation address
func (uc *ConsoleUseCase) AutoRotateLoginEmail(ctx context.Context, consoleID, phone string) (*entities.OperationResult, error) {
	return uc.dispatch(ctx, consoleID, phone, "auto_rotate_login_email", func(ctx context.Context) (*opOutcome, error) {
		target, err := uc.accounts.AutoRotateLoginEmail(ctx, phone)
		if err != nil {
			return nil, err
		}
		return &opOutcome{payload: map[string]string{"target_email": target}}, nil
	})
}

// TerminateOtherSessions revokes every other authorization
func (uc *ConsoleUseCase) TerminateOtherSessions(ctx context.Context, consoleID, phone string) (*entities.OperationResult, error) {
	return uc.dispatch(ctx, consoleID, phone, "terminate_other_sessions", func(ctx context.Context) (*opOutcome, error) {
		return nil, uc.accounts.TerminateOtherSessions(ctx, phone)
	})
}

// AutomateServiceChat runs the service-notification chat cleanup
func (uc *ConsoleUseCase) AutomateServiceChat(ctx context.Context, consoleID, phone string) (*entities.OperationResult, error) {
	return uc.dispatch(ctx, consoleID, phone, "automate_service_chat", func(ctx context.Context) (*opOutcome, error) {
		report, err := uc.accounts.AutomateServiceChat(ctx, phone)
		if err != nil {
			return nil, err
		}
		return &opOutcome{payload: report}, nil
	})
}

// LastExports lists the newest stored artifact per kind
func (uc *ConsoleUseCase) LastExports(ctx context.Context, phone string) ([]entities.ExportFile, error) {
	if phone == "" {
		return nil, consoleerrors.ErrPhoneRequired
	}

	files := make([]entities.ExportFile, 0, len(lastExportKinds))
	for _, kind := range lastExportKinds {
		if latest, ok := uc.cache.Lookup(ctx, phone, kind); ok {
			files = append(files, toExportFile(latest, kind))
		}
	}
	return files, nil
}

// DownloadExport streams one stored artifact
func (uc *ConsoleUseCase) DownloadExport(ctx context.Context, phone, kind, name string) ([]byte, string, error) {
	if phone == "" {
		return nil, "", consoleerrors.ErrPhoneRequired
	}

	key := phone + "/" + kind + "/" + name
	data, contentType, err := uc.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrArtifactNotFound) {
			return nil, "", consoleerrors.ErrExportNotFound
		}
		return nil, "", err
	}
	return data, contentType, nil
}

// Ensure ConsoleUseCase implements deps.ConsoleService
var _ deps.ConsoleService = (*ConsoleUseCase)(nil)
