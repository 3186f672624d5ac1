package business

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/entities"
	patternerrors "github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/errors"
	sessiondeps "github.com/arhteh596/granovskicrm-sub001/internal/domain/session/deps"
	sessionentities "github.com/arhteh596/granovskicrm-sub001/internal/domain/session/entities"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/metrics"
)

const artifactKind = "patterns"

// PatternUseCase runs pattern searches over a session's dialogs, stores
// their results as artifacts, and drives the per-console drill-down
// browser
type PatternUseCase struct {
	accounts domain.AccountGateway
	store    domain.ArtifactStore
	guard    deps.Guard
	sessions sessiondeps.SessionRepository
	audit    domain.AuditProducer
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	defaultPatterns []string
	pageSize        int

	mu       sync.Mutex
	browsers map[string]*entities.Browser
}

// NewPatternUseCase creates the pattern use case
func NewPatternUseCase(
	accounts domain.AccountGateway,
	store domain.ArtifactStore,
	guard deps.Guard,
	sessions sessiondeps.SessionRepository,
	audit domain.AuditProducer,
	defaultPatterns []string,
	pageSize int,
	logger zerolog.Logger,
) *PatternUseCase {
	if pageSize <= 0 {
		pageSize = 40
	}
	return &PatternUseCase{
		accounts:        accounts,
		store:           store,
		guard:           guard,
		sessions:        sessions,
		audit:           audit,
		metrics:         metrics.GetDefaultMetrics(),
		logger:          logger.With().Str("usecase", "patterns").Logger(),
		defaultPatterns: defaultPatterns,
		pageSize:        pageSize,
		browsers:        make(map[string]*entities.Browser),
	}
}

// RunSearch sweeps the session's dialogs for the patterns. A stored
// index answers the trigger unless force is set; a concurrent trigger
// on the same console is dropped.
func (uc *PatternUseCase) RunSearch(ctx context.Context, consoleID, phone string, patterns []string, force bool) (*deps.SearchResult, error) {
	if consoleID == "" {
		return nil, patternerrors.ErrConsoleIDRequired
	}
	if phone == "" {
		return nil, patternerrors.ErrPhoneRequired
	}

	if !uc.guard.TryAcquire(consoleID) {
		return &deps.SearchResult{Busy: true}, nil
	}
	defer uc.guard.Release(consoleID)

	if !force {
		if index, key, err := uc.latestIndex(ctx, phone); err == nil {
			uc.metrics.RecordExportCacheHit()
			return &deps.SearchResult{
				Success:    true,
				Existing:   true,
				IndexKey:   key,
				MatchCount: index.MatchCount(),
			}, nil
		}
		uc.metrics.RecordExportCacheMiss()
	}

	if len(patterns) == 0 {
		patterns = uc.defaultPatterns
	}

	started := time.Now()
	outcome, err := uc.accounts.SearchPatterns(ctx, phone, patterns)
	if err != nil {
		hint := domain.HintOf(err)
		uc.metrics.RecordOperationError("pattern_search", string(hint))
		uc.appendLog(ctx, phone, "", false, err.Error())
		return &deps.SearchResult{
			Hint:           string(hint),
			Detail:         err.Error(),
			ReauthRequired: hint == domain.HintSessionUnauthorized,
		}, nil
	}

	indexKey, err := uc.storeOutcome(ctx, phone, outcome)
	if err != nil {
		uc.appendLog(ctx, phone, "", false, err.Error())
		return &deps.SearchResult{Detail: err.Error()}, nil
	}

	uc.metrics.RecordOperation("pattern_search", time.Since(started).Seconds())
	uc.appendLog(ctx, phone, indexKey, true, fmt.Sprintf("%d matches", outcome.Index.MatchCount()))
	uc.publishAudit(ctx, phone, indexKey)

	return &deps.SearchResult{
		Success:    true,
		IndexKey:   indexKey,
		MatchCount: outcome.Index.MatchCount(),
	}, nil
}

// storeOutcome persists the index and the bundles as two artifacts
// whose names share a timestamp
func (uc *PatternUseCase) storeOutcome(ctx context.Context, phone string, outcome *entities.SearchOutcome) (string, error) {
	stamp := time.Now().UTC().Format("20060102_150405")

	bundleData, err := json.Marshal(outcome.Bundles)
	if err != nil {
		return "", fmt.Errorf("failed to marshal bundles: %w", err)
	}
	if _, err := uc.store.Put(ctx, phone, artifactKind, "bundles_"+stamp+".json", "application/json", bundleData); err != nil {
		return "", err
	}

	indexData, err := json.Marshal(outcome.Index)
	if err != nil {
		return "", fmt.Errorf("failed to marshal index: %w", err)
	}
	return uc.store.Put(ctx, phone, artifactKind, "index_"+stamp+".json", "application/json", indexData)
}

func (uc *PatternUseCase) appendLog(ctx context.Context, phone, artifactKey string, success bool, detail string) {
	err := uc.sessions.AppendLog(ctx, &sessionentities.ExportLogEntry{
		PhoneNumber: phone,
		Operation:   "pattern_search",
		ArtifactKey: artifactKey,
		Success:     success,
		Detail:      detail,
	})
	if err != nil {
		uc.logger.Debug().Err(err).Msg("failed to append operation log")
	}
}

func (uc *PatternUseCase) publishAudit(ctx context.Context, phone, artifactKey string) {
	if uc.audit == nil {
		return
	}
	err := uc.audit.SendOperation(ctx, &domain.AuditEvent{
		PhoneNumber: phone,
		Operation:   "pattern_search",
		Artifact:    artifactKey,
		Success:     true,
	})
	if err != nil {
		uc.logger.Warn().Err(err).Msg("failed to publish audit event")
	}
}

// latestArtifactByPrefix returns the newest stored artifact of the kind
// whose name starts with prefix
func (uc *PatternUseCase) latestArtifactByPrefix(ctx context.Context, phone, prefix string) (*domain.Artifact, error) {
	listed, err := uc.store.List(ctx, phone, artifactKind)
	if err != nil {
		return nil, err
	}

	var latest *domain.Artifact
	for i := range listed {
		if strings.HasPrefix(listed[i].Name, prefix) {
			latest = &listed[i]
		}
	}
	if latest == nil {
		return nil, patternerrors.ErrNoIndex
	}
	return latest, nil
}

func (uc *PatternUseCase) latestIndex(ctx context.Context, phone string) (*entities.Index, string, error) {
	artifact, err := uc.latestArtifactByPrefix(ctx, phone, "index_")
	if err != nil {
		return nil, "", err
	}

	data, _, err := uc.store.Get(ctx, artifact.Key)
	if err != nil {
		return nil, "", err
	}

	var index entities.Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, "", fmt.Errorf("failed to decode index: %w", err)
	}
	return &index, artifact.Key, nil
}

func (uc *PatternUseCase) latestBundles(ctx context.Context, phone string) ([]entities.Bundle, error) {
	artifact, err := uc.latestArtifactByPrefix(ctx, phone, "bundles_")
	if err != nil {
		return nil, err
	}

	data, _, err := uc.store.Get(ctx, artifact.Key)
	if err != nil {
		return nil, err
	}

	var bundles []entities.Bundle
	if err := json.Unmarshal(data, &bundles); err != nil {
		return nil, fmt.Errorf("failed to decode bundles: %w", err)
	}
	return bundles, nil
}

// IndexFor returns the latest stored index
func (uc *PatternUseCase) IndexFor(ctx context.Context, phone string) (*entities.Index, error) {
	if phone == "" {
		return nil, patternerrors.ErrPhoneRequired
	}
	index, _, err := uc.latestIndex(ctx, phone)
	return index, err
}

// BundleFor returns one stored context bundle
func (uc *PatternUseCase) BundleFor(ctx context.Context, phone string, chatID int64, matchID int) (*entities.Bundle, error) {
	if phone == "" {
		return nil, patternerrors.ErrPhoneRequired
	}

	bundles, err := uc.latestBundles(ctx, phone)
	if err != nil {
		return nil, err
	}

	for i := range bundles {
		if bundles[i].Meta.ChatID == chatID && bundles[i].Meta.MatchID == matchID {
			return &bundles[i], nil
		}
	}
	return nil, patternerrors.ErrBundleNotFound
}

// OpenBrowser loads the latest index into a fresh browser for the
// console
func (uc *PatternUseCase) OpenBrowser(ctx context.Context, consoleID, phone string) (*entities.Browser, error) {
	if consoleID == "" {
		return nil, patternerrors.ErrConsoleIDRequired
	}
	if phone == "" {
		return nil, patternerrors.ErrPhoneRequired
	}

	index, _, err := uc.latestIndex(ctx, phone)
	if err != nil {
		return nil, err
	}

	browser := entities.NewBrowser(phone, index, uc.pageSize)

	uc.mu.Lock()
	uc.browsers[consoleID] = browser
	uc.mu.Unlock()

	return browser, nil
}

// browser looks up the console's browser. The returned pointer is
// shared with concurrent requests; each transition takes the browser's
// own lock for its read-check-mutate run.
func (uc *PatternUseCase) browser(consoleID string) (*entities.Browser, error) {
	if consoleID == "" {
		return nil, patternerrors.ErrConsoleIDRequired
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	browser, ok := uc.browsers[consoleID]
	if !ok {
		return nil, patternerrors.ErrBrowserNotFound
	}
	return browser, nil
}

// SetChatFilter replaces the level-1 filter
func (uc *PatternUseCase) SetChatFilter(_ context.Context, consoleID, filter string) (*entities.Browser, error) {
	browser, err := uc.browser(consoleID)
	if err != nil {
		return nil, err
	}
	browser.Lock()
	defer browser.Unlock()
	browser.SetChatFilter(filter)
	return browser, nil
}

// ShowMoreChats reveals the next chat page
func (uc *PatternUseCase) ShowMoreChats(_ context.Context, consoleID string) (*entities.Browser, error) {
	browser, err := uc.browser(consoleID)
	if err != nil {
		return nil, err
	}
	browser.Lock()
	defer browser.Unlock()
	browser.ShowMoreChats()
	return browser, nil
}

// SelectChat drills into one chat's matches
func (uc *PatternUseCase) SelectChat(_ context.Context, consoleID string, chatID int64) (*entities.Browser, error) {
	browser, err := uc.browser(consoleID)
	if err != nil {
		return nil, err
	}
	browser.Lock()
	defer browser.Unlock()
	if !browser.SelectChat(chatID) {
		return nil, patternerrors.ErrChatNotInIndex
	}
	return browser, nil
}

// SetMatchFilters replaces the level-2 filters
func (uc *PatternUseCase) SetMatchFilters(_ context.Context, consoleID, keyword string, dateFrom, dateTo int64) (*entities.Browser, error) {
	browser, err := uc.browser(consoleID)
	if err != nil {
		return nil, err
	}
	browser.Lock()
	defer browser.Unlock()
	if browser.Level < entities.LevelMatches {
		return nil, patternerrors.ErrWrongLevel
	}
	browser.SetMatchFilters(keyword, dateFrom, dateTo)
	return browser, nil
}

// ShowMoreMatches reveals the next match page
func (uc *PatternUseCase) ShowMoreMatches(_ context.Context, consoleID string) (*entities.Browser, error) {
	browser, err := uc.browser(consoleID)
	if err != nil {
		return nil, err
	}
	browser.Lock()
	defer browser.Unlock()
	if browser.Level < entities.LevelMatches {
		return nil, patternerrors.ErrWrongLevel
	}
	browser.ShowMoreMatches()
	return browser, nil
}

// SelectMatch drills into one match and fetches its bundle. Fetch
// failures land in the browser's level-3 state, not in the error
// return.
func (uc *PatternUseCase) SelectMatch(ctx context.Context, consoleID string, matchID int) (*entities.Browser, error) {
	browser, err := uc.browser(consoleID)
	if err != nil {
		return nil, err
	}
	browser.Lock()
	defer browser.Unlock()
	if !browser.SelectMatch(matchID) {
		return nil, patternerrors.ErrMatchNotInChat
	}

	uc.loadBundle(ctx, browser)
	return browser, nil
}

// Retry re-fetches the selected match's bundle
func (uc *PatternUseCase) Retry(ctx context.Context, consoleID string) (*entities.Browser, error) {
	browser, err := uc.browser(consoleID)
	if err != nil {
		return nil, err
	}
	browser.Lock()
	defer browser.Unlock()
	if !browser.Retry() {
		return nil, patternerrors.ErrWrongLevel
	}

	uc.loadBundle(ctx, browser)
	return browser, nil
}

// loadBundle runs with the browser held, so a console's bundle fetch
// finishes before its next transition starts
func (uc *PatternUseCase) loadBundle(ctx context.Context, browser *entities.Browser) {
	bundle, err := uc.BundleFor(ctx, browser.Phone, browser.SelectedChatID, browser.SelectedMatchID)
	if err != nil {
		browser.SetBundleError(err.Error())
		return
	}
	browser.SetBundleLoaded(bundle)
}

// Back ascends one browser level
func (uc *PatternUseCase) Back(_ context.Context, consoleID string) (*entities.Browser, error) {
	browser, err := uc.browser(consoleID)
	if err != nil {
		return nil, err
	}
	browser.Lock()
	defer browser.Unlock()
	browser.Back()
	return browser, nil
}

// CloseBrowser discards the console's browser state
func (uc *PatternUseCase) CloseBrowser(_ context.Context, consoleID string) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if _, ok := uc.browsers[consoleID]; !ok {
		return patternerrors.ErrBrowserNotFound
	}
	delete(uc.browsers, consoleID)
	return nil
}

// Ensure PatternUseCase implements deps.PatternService
var _ deps.PatternService = (*PatternUseCase)(nil)
