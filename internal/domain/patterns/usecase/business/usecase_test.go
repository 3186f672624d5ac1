package business

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/dto"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/entities"
	patternerrors "github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/errors"
	sessionentities "github.com/arhteh596/granovskicrm-sub001/internal/domain/session/entities"
)

// searchGateway stubs only the pattern sweep; everything else is unused
// by this use case
type searchGateway struct {
	mu      sync.Mutex
	calls   int
	outcome *entities.SearchOutcome
	err     error
}

func (s *searchGateway) SearchPatterns(ctx context.Context, phone string, patterns []string) (*entities.SearchOutcome, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.outcome, nil
}

func (s *searchGateway) IsAuthorized(ctx context.Context, phone string) (bool, error) {
	return true, nil
}
func (s *searchGateway) UserInfo(ctx context.Context, phone string) (*domain.AccountInfo, error) {
	return nil, nil
}
func (s *searchGateway) ExportContacts(ctx context.Context, phone string) (*domain.ExportArtifact, error) {
	return nil, nil
}
func (s *searchGateway) ExportChats(ctx context.Context, phone string) (*domain.ExportArtifact, error) {
	return nil, nil
}
func (s *searchGateway) ExportSavedMessages(ctx context.Context, phone string) (*domain.ExportArtifact, error) {
	return nil, nil
}
func (s *searchGateway) ExportDialog(ctx context.Context, phone, peer string) (*domain.ExportArtifact, error) {
	return nil, nil
}
func (s *searchGateway) ExportContactsWithPhotos(ctx context.Context, phone string) (*domain.ExportArtifact, error) {
	return nil, nil
}
func (s *searchGateway) FetchAvatar(ctx context.Context, phone string) (*domain.ExportArtifact, error) {
	return nil, nil
}
func (s *searchGateway) ScanBalances(ctx context.Context, phone string) (*domain.BalanceReport, *domain.ExportArtifact, error) {
	return nil, nil, nil
}
func (s *searchGateway) SessionMetrics(ctx context.Context, phone string, contactsCount, chatsCount int) (*domain.SessionMetrics, error) {
	return nil, nil
}
func (s *searchGateway) TwoFAStatus(ctx context.Context, phone string) (*domain.TwoFAStatus, error) {
	return nil, nil
}
func (s *searchGateway) UpdatePassword(ctx context.Context, phone, currentPassword, newPassword, hint string) error {
	return nil
}
func (s *searchGateway) SetOrUpdate2FAEmail(ctx context.Context, phone, email string) (*domain.EmailCode, error) {
	return nil, nil
}
func (s *searchGateway) LoginEmailStatus(ctx context.Context, phone string) (*domain.LoginEmailStatus, error) {
	return nil, nil
}
func (s *searchGateway) SendLoginEmailCode(ctx context.Context, phone, email string) (*domain.EmailCode, error) {
	return nil, nil
}
func (s *searchGateway) VerifyLoginEmail(ctx context.Context, phone, code string) error { return nil }
func (s *searchGateway) AutoRotateLoginEmail(ctx context.Context, phone string) (string, error) {
	return "", nil
}
func (s *searchGateway) TerminateOtherSessions(ctx context.Context, phone string) error { return nil }
func (s *searchGateway) AutomateServiceChat(ctx context.Context, phone string) (*domain.AutomationReport, error) {
	return nil, nil
}

// memStore is an in-memory domain.ArtifactStore keyed like the s3 store
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Put(ctx context.Context, phone, kind, name, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := phone + "/" + kind + "/" + name
	m.objects[key] = data
	return key, nil
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, "", domain.ErrArtifactNotFound
	}
	return data, "application/json", nil
}

func (m *memStore) List(ctx context.Context, phone, kind string) ([]domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := phone + "/" + kind + "/"
	keys := make([]string, 0)
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	listed := make([]domain.Artifact, 0, len(keys))
	for _, key := range keys {
		listed = append(listed, domain.Artifact{Key: key, Name: strings.TrimPrefix(key, prefix)})
	}
	return listed, nil
}

// nopGuard always admits
type nopGuard struct{}

func (nopGuard) TryAcquire(consoleID string) bool { return true }
func (nopGuard) Release(consoleID string)         {}

// busyGuard always refuses
type busyGuard struct{}

func (busyGuard) TryAcquire(consoleID string) bool { return false }
func (busyGuard) Release(consoleID string)         {}

// logRepo records appended operation log entries
type logRepo struct {
	mu   sync.Mutex
	logs []sessionentities.ExportLogEntry
}

func (r *logRepo) RecordAuthorized(ctx context.Context, phone string, user *domain.AccountInfo) error {
	return nil
}
func (r *logRepo) List(ctx context.Context) ([]sessionentities.SessionRecord, error) {
	return nil, nil
}
func (r *logRepo) GetByID(ctx context.Context, id uint) (*sessionentities.SessionRecord, error) {
	return nil, nil
}
func (r *logRepo) GetByPhone(ctx context.Context, phone string) (*sessionentities.SessionRecord, error) {
	return nil, nil
}
func (r *logRepo) Delete(ctx context.Context, id uint) error                 { return nil }
func (r *logRepo) SetActive(ctx context.Context, phone string, b bool) error { return nil }
func (r *logRepo) TouchLastUsed(ctx context.Context, phone string) error     { return nil }
func (r *logRepo) AppendLog(ctx context.Context, entry *sessionentities.ExportLogEntry) error {
	r.mu.Lock()
	r.logs = append(r.logs, *entry)
	r.mu.Unlock()
	return nil
}
func (r *logRepo) History(ctx context.Context, phone string, limit int) ([]sessionentities.ExportLogEntry, error) {
	return nil, nil
}

func testOutcome() *entities.SearchOutcome {
	return &entities.SearchOutcome{
		Index: entities.Index{
			Patterns: []string{"seed"},
			Chats: []entities.ChatSummary{
				{ChatID: 1, ChatName: "Crypto Signals", Bundles: []entities.BundleSummary{
					{MatchID: 10, Date: 1000, TextExcerpt: "seed phrase backup"},
				}},
			},
			GeneratedAt: time.Now().UTC(),
		},
		Bundles: []entities.Bundle{
			{
				Meta:  entities.BundleMeta{ChatID: 1, ChatName: "Crypto Signals", MatchID: 10, Pattern: "seed"},
				Match: entities.Message{ID: 10, Date: 1000, Text: "seed phrase backup"},
				Before: []entities.Message{
					{ID: 9, Date: 990, Text: "hi"},
				},
			},
		},
	}
}

func newPatternFixture(gw *searchGateway) (*PatternUseCase, *memStore, *logRepo) {
	store := newMemStore()
	repo := &logRepo{}
	uc := NewPatternUseCase(gw, store, nopGuard{}, repo, nil, []string{"seed"}, 10, zerolog.Nop())
	return uc, store, repo
}

func TestRunSearchStoresIndexAndBundles(t *testing.T) {
	gw := &searchGateway{outcome: testOutcome()}
	uc, store, repo := newPatternFixture(gw)

	res, err := uc.RunSearch(context.Background(), "console-1", "+79991234567", nil, false)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, res.Existing)
	require.Equal(t, 1, res.MatchCount)
	require.Contains(t, res.IndexKey, "index_")

	listed, err := store.List(context.Background(), "+79991234567", "patterns")
	require.NoError(t, err)
	require.Len(t, listed, 2)

	require.Len(t, repo.logs, 1)
	require.True(t, repo.logs[0].Success)
	require.Equal(t, "1 matches", repo.logs[0].Detail)
}

func TestRunSearchAnswersFromStoredIndex(t *testing.T) {
	gw := &searchGateway{outcome: testOutcome()}
	uc, _, _ := newPatternFixture(gw)

	_, err := uc.RunSearch(context.Background(), "console-1", "+79991234567", nil, false)
	require.NoError(t, err)
	require.Equal(t, 1, gw.calls)

	res, err := uc.RunSearch(context.Background(), "console-1", "+79991234567", nil, false)
	require.NoError(t, err)
	require.True(t, res.Existing)
	require.Equal(t, 1, res.MatchCount)
	// answered from storage, no second sweep
	require.Equal(t, 1, gw.calls)

	// force re-runs the sweep
	res, err = uc.RunSearch(context.Background(), "console-1", "+79991234567", nil, true)
	require.NoError(t, err)
	require.False(t, res.Existing)
	require.Equal(t, 2, gw.calls)
}

func TestRunSearchBusyConsole(t *testing.T) {
	gw := &searchGateway{outcome: testOutcome()}
	store := newMemStore()
	uc := NewPatternUseCase(gw, store, busyGuard{}, &logRepo{}, nil, []string{"seed"}, 10, zerolog.Nop())

	res, err := uc.RunSearch(context.Background(), "console-1", "+79991234567", nil, false)
	require.NoError(t, err)
	require.True(t, res.Busy)
	require.Equal(t, 0, gw.calls)
}

func TestRunSearchRemoteFailure(t *testing.T) {
	gw := &searchGateway{err: domain.NewRemoteError(domain.HintSessionUnauthorized, domain.ErrNotConnected)}
	uc, _, repo := newPatternFixture(gw)

	res, err := uc.RunSearch(context.Background(), "console-1", "+79991234567", nil, true)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.True(t, res.ReauthRequired)
	require.Equal(t, string(domain.HintSessionUnauthorized), res.Hint)

	require.Len(t, repo.logs, 1)
	require.False(t, repo.logs[0].Success)
}

func TestBundleForFindsStoredBundle(t *testing.T) {
	gw := &searchGateway{outcome: testOutcome()}
	uc, _, _ := newPatternFixture(gw)

	_, err := uc.RunSearch(context.Background(), "console-1", "+79991234567", nil, true)
	require.NoError(t, err)

	bundle, err := uc.BundleFor(context.Background(), "+79991234567", 1, 10)
	require.NoError(t, err)
	require.Equal(t, "seed phrase backup", bundle.Match.Text)

	_, err = uc.BundleFor(context.Background(), "+79991234567", 1, 99)
	require.ErrorIs(t, err, patternerrors.ErrBundleNotFound)
}

func TestOpenBrowserRequiresIndex(t *testing.T) {
	gw := &searchGateway{outcome: testOutcome()}
	uc, _, _ := newPatternFixture(gw)

	_, err := uc.OpenBrowser(context.Background(), "console-1", "+79991234567")
	require.ErrorIs(t, err, patternerrors.ErrNoIndex)
}

func TestBrowserDrillDown(t *testing.T) {
	gw := &searchGateway{outcome: testOutcome()}
	uc, _, _ := newPatternFixture(gw)

	_, err := uc.RunSearch(context.Background(), "console-1", "+79991234567", nil, true)
	require.NoError(t, err)

	browser, err := uc.OpenBrowser(context.Background(), "console-1", "+79991234567")
	require.NoError(t, err)
	require.Equal(t, entities.LevelChats, browser.Level)

	_, err = uc.SelectChat(context.Background(), "console-1", 99)
	require.ErrorIs(t, err, patternerrors.ErrChatNotInIndex)

	browser, err = uc.SelectChat(context.Background(), "console-1", 1)
	require.NoError(t, err)
	require.Equal(t, entities.LevelMatches, browser.Level)

	browser, err = uc.SelectMatch(context.Background(), "console-1", 10)
	require.NoError(t, err)
	require.Equal(t, entities.LevelBundle, browser.Level)
	require.Equal(t, entities.BundleStatusLoaded, browser.BundleStatus)
	require.Equal(t, "seed phrase backup", browser.Bundle.Match.Text)

	browser, err = uc.Back(context.Background(), "console-1")
	require.NoError(t, err)
	require.Equal(t, entities.LevelMatches, browser.Level)

	require.NoError(t, uc.CloseBrowser(context.Background(), "console-1"))
	require.ErrorIs(t, uc.CloseBrowser(context.Background(), "console-1"), patternerrors.ErrBrowserNotFound)

	_, err = uc.SelectChat(context.Background(), "console-1", 1)
	require.ErrorIs(t, err, patternerrors.ErrBrowserNotFound)
}

func TestSelectMatchBundleFetchFailure(t *testing.T) {
	gw := &searchGateway{outcome: testOutcome()}
	uc, store, _ := newPatternFixture(gw)

	_, err := uc.RunSearch(context.Background(), "console-1", "+79991234567", nil, true)
	require.NoError(t, err)

	_, err = uc.OpenBrowser(context.Background(), "console-1", "+79991234567")
	require.NoError(t, err)
	_, err = uc.SelectChat(context.Background(), "console-1", 1)
	require.NoError(t, err)

	// lose the stored bundles: the fetch failure must land in browser
	// state, not in the error return
	store.mu.Lock()
	for key := range store.objects {
		if strings.Contains(key, "bundles_") {
			delete(store.objects, key)
		}
	}
	store.mu.Unlock()

	browser, err := uc.SelectMatch(context.Background(), "console-1", 10)
	require.NoError(t, err)
	require.Equal(t, entities.BundleStatusError, browser.BundleStatus)
	require.NotEmpty(t, browser.BundleError)

	// retry after restoring the data succeeds
	_, err = uc.RunSearch(context.Background(), "console-1", "+79991234567", nil, true)
	require.NoError(t, err)

	browser, err = uc.Retry(context.Background(), "console-1")
	require.NoError(t, err)
	require.Equal(t, entities.BundleStatusLoaded, browser.BundleStatus)
}

func TestBrowserSurvivesConcurrentTransitions(t *testing.T) {
	gw := &searchGateway{outcome: testOutcome()}
	uc, _, _ := newPatternFixture(gw)

	ctx := context.Background()
	_, err := uc.RunSearch(ctx, "console-1", "+79991234567", nil, true)
	require.NoError(t, err)
	_, err = uc.OpenBrowser(ctx, "console-1", "+79991234567")
	require.NoError(t, err)

	// hammer one console from several requests at once; transitions that
	// lose the interleaving may fail with level errors, but every returned
	// browser must render a coherent view
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if b, err := uc.SetChatFilter(ctx, "console-1", "crypto"); err == nil {
					dto.RenderBrowser(b)
				}
				uc.ShowMoreChats(ctx, "console-1")
				if b, err := uc.SelectChat(ctx, "console-1", 1); err == nil {
					dto.RenderBrowser(b)
				}
				uc.SetMatchFilters(ctx, "console-1", "seed", 0, 0)
				uc.ShowMoreMatches(ctx, "console-1")
				if b, err := uc.SelectMatch(ctx, "console-1", 10); err == nil {
					dto.RenderBrowser(b)
				}
				uc.Back(ctx, "console-1")
				uc.Back(ctx, "console-1")
			}
		}()
	}
	wg.Wait()

	browser, err := uc.SetChatFilter(ctx, "console-1", "")
	require.NoError(t, err)
	view := dto.RenderBrowser(browser)
	require.GreaterOrEqual(t, view.Level, int(entities.LevelChats))
	require.LessOrEqual(t, view.Level, int(entities.LevelBundle))
	require.NotEmpty(t, view.Chats)
}
