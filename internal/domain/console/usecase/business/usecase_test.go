package business

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/console/entities"
	consoleerrors "github.com/arhteh596/granovskicrm-sub001/internal/domain/console/errors"
	patternentities "github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/entities"
	sessionentities "github.com/arhteh596/granovskicrm-sub001/internal/domain/session/entities"
)

// stubAccountGateway counts expensive calls and returns scripted values
type stubAccountGateway struct {
	mu          sync.Mutex
	exportCalls int
	exportErr   error
	artifact    *domain.ExportArtifact
	info        *domain.AccountInfo
}

func (s *stubAccountGateway) export() (*domain.ExportArtifact, error) {
	s.mu.Lock()
	s.exportCalls++
	s.mu.Unlock()
	if s.exportErr != nil {
		return nil, s.exportErr
	}
	return s.artifact, nil
}

func (s *stubAccountGateway) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exportCalls
}

func (s *stubAccountGateway) IsAuthorized(ctx context.Context, phone string) (bool, error) {
	return true, nil
}

func (s *stubAccountGateway) UserInfo(ctx context.Context, phone string) (*domain.AccountInfo, error) {
	return s.info, nil
}

func (s *stubAccountGateway) ExportContacts(ctx context.Context, phone string) (*domain.ExportArtifact, error) {
	return s.export()
}

func (s *stubAccountGateway) ExportChats(ctx context.Context, phone string) (*domain.ExportArtifact, error) {
	return s.export()
}

func (s *stubAccountGateway) ExportSavedMessages(ctx context.Context, phone string) (*domain.ExportArtifact, error) {
	return s.export()
}

func (s *stubAccountGateway) ExportDialog(ctx context.Context, phone, peer string) (*domain.ExportArtifact, error) {
	return s.export()
}

func (s *stubAccountGateway) ExportContactsWithPhotos(ctx context.Context, phone string) (*domain.ExportArtifact, error) {
	return s.export()
}

func (s *stubAccountGateway) FetchAvatar(ctx context.Context, phone string) (*domain.ExportArtifact, error) {
	return s.export()
}

func (s *stubAccountGateway) ScanBalances(ctx context.Context, phone string) (*domain.BalanceReport, *domain.ExportArtifact, error) {
	artifact, err := s.export()
	if err != nil {
		return nil, nil, err
	}
	return &domain.BalanceReport{CoinsFound: []string{"TON"}}, artifact, nil
}

func (s *stubAccountGateway) SearchPatterns(ctx context.Context, phone string, patterns []string) (*patternentities.SearchOutcome, error) {
	return nil, nil
}

func (s *stubAccountGateway) SessionMetrics(ctx context.Context, phone string, contactsCount, chatsCount int) (*domain.SessionMetrics, error) {
	return &domain.SessionMetrics{IsAuthorized: true}, nil
}

func (s *stubAccountGateway) TwoFAStatus(ctx context.Context, phone string) (*domain.TwoFAStatus, error) {
	return &domain.TwoFAStatus{HasPassword: true, Hint: "pet name"}, nil
}

func (s *stubAccountGateway) UpdatePassword(ctx context.Context, phone, currentPassword, newPassword, hint string) error {
	return nil
}

func (s *stubAccountGateway) SetOrUpdate2FAEmail(ctx context.Context, phone, email string) (*domain.EmailCode, error) {
	return &domain.EmailCode{Pattern: "a***@mail.test", Length: 6}, nil
}

func (s *stubAccountGateway) LoginEmailStatus(ctx context.Context, phone string) (*domain.LoginEmailStatus, error) {
	return &domain.LoginEmailStatus{Pattern: "a***@mail.test", Confirmed: true}, nil
}

func (s *stubAccountGateway) SendLoginEmailCode(ctx context.Context, phone, email string) (*domain.EmailCode, error) {
	return &domain.EmailCode{Pattern: "b***@mail.test", Length: 6}, nil
}

func (s *stubAccountGateway) VerifyLoginEmail(ctx context.Context, phone, code string) error {
	return nil
}

func (s *stubAccountGateway) AutoRotateLoginEmail(ctx context.Context, phone string) (string, error) {
	return "next@mail.test", nil
}

func (s *stubAccountGateway) TerminateOtherSessions(ctx context.Context, phone string) error {
	return nil
}

func (s *stubAccountGateway) AutomateServiceChat(ctx context.Context, phone string) (*domain.AutomationReport, error) {
	return &domain.AutomationReport{Success: true}, nil
}

// memArtifactStore is an in-memory domain.ArtifactStore
type memArtifactStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemArtifactStore() *memArtifactStore {
	return &memArtifactStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (m *memArtifactStore) Put(ctx context.Context, phone, kind, name, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := phone + "/" + kind + "/" + name
	m.objects[key] = data
	m.types[key] = contentType
	return key, nil
}

func (m *memArtifactStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, "", domain.ErrArtifactNotFound
	}
	return data, m.types[key], nil
}

func (m *memArtifactStore) List(ctx context.Context, phone, kind string) ([]domain.Artifact, error) {
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
		listed = append(listed, domain.Artifact{
			Key:  key,
			Name: strings.TrimPrefix(key, prefix),
			Size: int64(len(m.objects[key])),
		})
	}
	return listed, nil
}

// stubSessionRepo records log appends and last-used touches
type stubSessionRepo struct {
	mu      sync.Mutex
	logs    []sessionentities.ExportLogEntry
	touched []string
}

func (r *stubSessionRepo) RecordAuthorized(ctx context.Context, phone string, user *domain.AccountInfo) error {
	return nil
}

func (r *stubSessionRepo) List(ctx context.Context) ([]sessionentities.SessionRecord, error) {
	return nil, nil
}

func (r *stubSessionRepo) GetByID(ctx context.Context, id uint) (*sessionentities.SessionRecord, error) {
	return nil, nil
}

func (r *stubSessionRepo) GetByPhone(ctx context.Context, phone string) (*sessionentities.SessionRecord, error) {
	return nil, nil
}

func (r *stubSessionRepo) Delete(ctx context.Context, id uint) error { return nil }

func (r *stubSessionRepo) SetActive(ctx context.Context, phone string, active bool) error {
	return nil
}

func (r *stubSessionRepo) TouchLastUsed(ctx context.Context, phone string) error {
	r.mu.Lock()
	r.touched = append(r.touched, phone)
	r.mu.Unlock()
	return nil
}

func (r *stubSessionRepo) AppendLog(ctx context.Context, entry *sessionentities.ExportLogEntry) error {
	r.mu.Lock()
	r.logs = append(r.logs, *entry)
	r.mu.Unlock()
	return nil
}

func (r *stubSessionRepo) History(ctx context.Context, phone string, limit int) ([]sessionentities.ExportLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sessionentities.ExportLogEntry, len(r.logs))
	copy(out, r.logs)
	return out, nil
}

type consoleFixture struct {
	uc    *ConsoleUseCase
	gw    *stubAccountGateway
	store *memArtifactStore
	repo  *stubSessionRepo
	guard *SingleFlightGuard
}

func newConsoleFixture() *consoleFixture {
	gw := &stubAccountGateway{
		artifact: &domain.ExportArtifact{
			Name:        "contacts_20260101_120000.csv",
			ContentType: "text/csv",
			Data:        []byte("id,username\n1,tester\n"),
		},
		info: &domain.AccountInfo{ID: 42, Phone: "+79991234567"},
	}
	store := newMemArtifactStore()
	repo := &stubSessionRepo{}
	guard := NewSingleFlightGuard()
	cache := NewArtifactExportCache(store, zerolog.Nop())
	uc := NewConsoleUseCase(guard, cache, gw, store, repo, nil, zerolog.Nop())
	return &consoleFixture{uc: uc, gw: gw, store: store, repo: repo, guard: guard}
}

func TestSingleFlightGuard(t *testing.T) {
	guard := NewSingleFlightGuard()

	require.True(t, guard.TryAcquire("console-1"))
	require.False(t, guard.TryAcquire("console-1"))
	// other consoles are unaffected
	require.True(t, guard.TryAcquire("console-2"))

	guard.Release("console-1")
	require.True(t, guard.TryAcquire("console-1"))
}

func TestDispatchRequiresConsoleID(t *testing.T) {
	f := newConsoleFixture()

	_, err := f.uc.Profile(context.Background(), "", "+79991234567")
	require.ErrorIs(t, err, consoleerrors.ErrConsoleIDRequired)

	_, err = f.uc.Profile(context.Background(), "console-1", "")
	require.ErrorIs(t, err, consoleerrors.ErrPhoneRequired)
}

func TestDispatchBusyConsole(t *testing.T) {
	f := newConsoleFixture()

	require.True(t, f.guard.TryAcquire("console-1"))
	defer f.guard.Release("console-1")

	res, err := f.uc.ExportContacts(context.Background(), "console-1", "+79991234567", false)
	require.NoError(t, err)
	require.True(t, res.Busy)
	require.False(t, res.Success)
	// the busy drop never reached Telegram
	require.Equal(t, 0, f.gw.calls())
}

func TestDispatchReleasesGuardAfterFailure(t *testing.T) {
	f := newConsoleFixture()
	f.gw.exportErr = domain.NewRemoteError(domain.HintRateLimited, context.DeadlineExceeded)

	res, err := f.uc.ExportContacts(context.Background(), "console-1", "+79991234567", true)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, string(domain.HintRateLimited), res.Hint)

	// slot is free again
	require.True(t, f.guard.TryAcquire("console-1"))
}

func TestExportStoresArtifactAndLogs(t *testing.T) {
	f := newConsoleFixture()

	res, err := f.uc.ExportContacts(context.Background(), "console-1", "+79991234567", false)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, res.Existing)
	require.Equal(t, "export_contacts", res.Operation)
	require.Equal(t, "+79991234567/contacts/contacts_20260101_120000.csv", res.ArtifactKey)

	data, contentType, err := f.store.Get(context.Background(), res.ArtifactKey)
	require.NoError(t, err)
	require.Equal(t, "text/csv", contentType)
	require.NotEmpty(t, data)

	require.Len(t, f.repo.logs, 1)
	require.True(t, f.repo.logs[0].Success)
	require.Equal(t, "export_contacts", f.repo.logs[0].Operation)
	require.Equal(t, []string{"+79991234567"}, f.repo.touched)
}

func TestExportCacheHitSkipsTelegram(t *testing.T) {
	f := newConsoleFixture()

	first, err := f.uc.ExportContacts(context.Background(), "console-1", "+79991234567", false)
	require.NoError(t, err)
	require.Equal(t, 1, f.gw.calls())

	second, err := f.uc.ExportContacts(context.Background(), "console-1", "+79991234567", false)
	require.NoError(t, err)
	require.True(t, second.Success)
	require.True(t, second.Existing)
	require.Equal(t, first.ArtifactKey, second.ArtifactKey)
	// answered from storage, no second sweep
	require.Equal(t, 1, f.gw.calls())
}

func TestExportForceBypassesCache(t *testing.T) {
	f := newConsoleFixture()

	_, err := f.uc.ExportContacts(context.Background(), "console-1", "+79991234567", false)
	require.NoError(t, err)

	res, err := f.uc.ExportContacts(context.Background(), "console-1", "+79991234567", true)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, res.Existing)
	require.Equal(t, 2, f.gw.calls())
}

func TestReauthRequiredOnUnauthorizedSession(t *testing.T) {
	f := newConsoleFixture()
	f.gw.exportErr = domain.NewRemoteError(domain.HintSessionUnauthorized, domain.ErrNotConnected)

	res, err := f.uc.ExportChats(context.Background(), "console-1", "+79991234567", true)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.True(t, res.ReauthRequired)
	require.Equal(t, string(domain.HintSessionUnauthorized), res.Hint)

	// the failure is still logged
	require.Len(t, f.repo.logs, 1)
	require.False(t, f.repo.logs[0].Success)
}

func TestExportDialogRequiresPeer(t *testing.T) {
	f := newConsoleFixture()

	_, err := f.uc.ExportDialog(context.Background(), "console-1", "+79991234567", "  ")
	require.ErrorIs(t, err, consoleerrors.ErrPeerRequired)
}

func TestScanBalancesPayload(t *testing.T) {
	f := newConsoleFixture()
	f.gw.artifact = &domain.ExportArtifact{
		Name:        "balances_20260101_120000.json",
		ContentType: "application/json",
		Data:        []byte("{}"),
	}

	res, err := f.uc.ScanBalances(context.Background(), "console-1", "+79991234567", true)
	require.NoError(t, err)
	require.True(t, res.Success)

	report, ok := res.Payload.(*domain.BalanceReport)
	require.True(t, ok)
	require.Equal(t, []string{"TON"}, report.CoinsFound)
}

func TestLastExports(t *testing.T) {
	f := newConsoleFixture()

	_, err := f.uc.ExportContacts(context.Background(), "console-1", "+79991234567", false)
	require.NoError(t, err)

	f.gw.artifact = &domain.ExportArtifact{
		Name:        "chats_20260101_120000.json",
		ContentType: "application/json",
		Data:        []byte("[]"),
	}
	_, err = f.uc.ExportChats(context.Background(), "console-1", "+79991234567", false)
	require.NoError(t, err)

	files, err := f.uc.LastExports(context.Background(), "+79991234567")
	require.NoError(t, err)
	require.Len(t, files, 2)

	kinds := []string{files[0].Kind, files[1].Kind}
	require.Contains(t, kinds, string(entities.KindContacts))
	require.Contains(t, kinds, string(entities.KindChats))
}

func TestDownloadExport(t *testing.T) {
	f := newConsoleFixture()

	res, err := f.uc.ExportContacts(context.Background(), "console-1", "+79991234567", false)
	require.NoError(t, err)

	data, contentType, err := f.uc.DownloadExport(context.Background(), "+79991234567", "contacts", "contacts_20260101_120000.csv")
	require.NoError(t, err)
	require.Equal(t, "text/csv", contentType)
	require.Equal(t, f.store.objects[res.ArtifactKey], data)

	_, _, err = f.uc.DownloadExport(context.Background(), "+79991234567", "contacts", "missing.csv")
	require.ErrorIs(t, err, consoleerrors.ErrExportNotFound)
}

func TestExportCacheLookupOrdersByName(t *testing.T) {
	store := newMemArtifactStore()
	cache := NewArtifactExportCache(store, zerolog.Nop())

	_, err := store.Put(context.Background(), "+79991234567", "contacts", "contacts_20260101_120000.csv", "text/csv", []byte("old"))
	require.NoError(t, err)
	_, err = store.Put(context.Background(), "+79991234567", "contacts", "contacts_20260301_080000.csv", "text/csv", []byte("new"))
	require.NoError(t, err)

	latest, ok := cache.Lookup(context.Background(), "+79991234567", entities.KindContacts)
	require.True(t, ok)
	require.Equal(t, "contacts_20260301_080000.csv", latest.Name)

	_, ok = cache.Lookup(context.Background(), "+79991234567", entities.KindChats)
	require.False(t, ok)
}
