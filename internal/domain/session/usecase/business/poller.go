package business

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/session/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/session/entities"
	sessionerrors "github.com/arhteh596/granovskicrm-sub001/internal/domain/session/errors"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/metrics"
)

// PollerConfig carries the three loop intervals
type PollerConfig struct {
	MetricsInterval  time.Duration
	LivenessInterval time.Duration
	LogTailInterval  time.Duration
}

// logSubscription tails one session's operation log
type logSubscription struct {
	id     string
	phone  string
	cancel context.CancelFunc

	mu         sync.Mutex
	lines      []string
	lastSeenID uint
}

// Poller keeps session state fresh with three independent loops:
// a slow metrics merge, a fast liveness patch and per-subscription log
// tails. Per-item failures are swallowed so one broken session never
// stalls the rest.
type Poller struct {
	repo      deps.SessionRepository
	accounts  domain.AccountGateway
	artifacts domain.ArtifactStore
	cfg       PollerConfig
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu        sync.RWMutex
	snapshots map[string]*entities.MetricsSnapshot
	subs      map[string]*logSubscription
	stopped   bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates the session poller
func NewPoller(
	repo deps.SessionRepository,
	accounts domain.AccountGateway,
	artifacts domain.ArtifactStore,
	cfg PollerConfig,
	logger zerolog.Logger,
) *Poller {
	if cfg.MetricsInterval <= 0 {
		cfg.MetricsInterval = 5 * time.Minute
	}
	if cfg.LivenessInterval <= 0 {
		cfg.LivenessInterval = 5 * time.Second
	}
	if cfg.LogTailInterval <= 0 {
		cfg.LogTailInterval = 4 * time.Second
	}

	return &Poller{
		repo:      repo,
		accounts:  accounts,
		artifacts: artifacts,
		cfg:       cfg,
		metrics:   metrics.GetDefaultMetrics(),
		logger:    logger.With().Str("component", "session-poller").Logger(),
		snapshots: make(map[string]*entities.MetricsSnapshot),
		subs:      make(map[string]*logSubscription),
	}
}

// Start launches the metrics and liveness loops
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(2)
	go p.runMetricsLoop(ctx)
	go p.runLivenessLoop(ctx)
}

// Stop cancels all loops and open subscriptions. The stopped marker is
// raised before the wait so no new tail can join the group afterwards.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}

	p.mu.Lock()
	p.stopped = true
	for id, sub := range p.subs {
		sub.cancel()
		delete(p.subs, id)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Poller) runMetricsLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.MetricsInterval)
	defer ticker.Stop()

	p.refreshMetrics(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refreshMetrics(ctx)
		}
	}
}

// refreshMetrics merges fresh values key by key: a failed fetch keeps
// every prior value for that session
func (p *Poller) refreshMetrics(ctx context.Context) {
	p.metrics.RecordPollCycle("metrics")

	sessions, err := p.repo.List(ctx)
	if err != nil {
		p.metrics.RecordPollError("metrics")
		p.logger.Warn().Err(err).Msg("metrics poll: session listing failed")
		return
	}
	p.metrics.UpdateTrackedSessions(len(sessions))

	for _, s := range sessions {
		fresh, err := p.fetchSnapshot(ctx, s.PhoneNumber)
		if err != nil {
			p.metrics.RecordPollError("metrics")
			p.logger.Debug().Str("phone", s.PhoneNumber).Err(err).Msg("metrics poll: fetch failed, keeping prior")
			continue
		}

		p.mu.Lock()
		prior, ok := p.snapshots[s.PhoneNumber]
		if !ok {
			prior = &entities.MetricsSnapshot{PhoneNumber: s.PhoneNumber}
			p.snapshots[s.PhoneNumber] = prior
		}
		prior.Merge(fresh)
		p.mu.Unlock()
	}
}

func (p *Poller) fetchSnapshot(ctx context.Context, phone string) (*entities.MetricsSnapshot, error) {
	contacts, chats := p.exportCounts(ctx, phone)

	sm, err := p.accounts.SessionMetrics(ctx, phone, contacts, chats)
	if err != nil {
		return nil, err
	}

	devices := len(sm.Devices)
	fresh := &entities.MetricsSnapshot{
		PhoneNumber:  phone,
		IsAuthorized: &sm.IsAuthorized,
		Devices:      &devices,
		Has2FA:       &sm.Has2FA,
		RefreshedAt:  time.Now(),
	}
	if sm.EmailPattern != "" {
		fresh.EmailPattern = &sm.EmailPattern
	}
	if contacts >= 0 {
		fresh.ContactsCount = &contacts
	}
	if chats >= 0 {
		fresh.ChatsCount = &chats
	}
	return fresh, nil
}

// exportCounts derives contact and chat counts from the latest stored
// exports; -1 means no export to count from
func (p *Poller) exportCounts(ctx context.Context, phone string) (int, int) {
	contacts := -1
	if data, ok := p.latestArtifact(ctx, phone, "contacts"); ok {
		// CSV with a header row
		rows := bytes.Count(data, []byte("\n"))
		if rows > 0 {
			contacts = rows - 1
		}
	}

	chats := -1
	if data, ok := p.latestArtifact(ctx, phone, "chats"); ok {
		var entries []json.RawMessage
		if err := json.Unmarshal(data, &entries); err == nil {
			chats = len(entries)
		}
	}

	return contacts, chats
}

func (p *Poller) latestArtifact(ctx context.Context, phone, kind string) ([]byte, bool) {
	listed, err := p.artifacts.List(ctx, phone, kind)
	if err != nil || len(listed) == 0 {
		return nil, false
	}

	data, _, err := p.artifacts.Get(ctx, listed[len(listed)-1].Key)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (p *Poller) runLivenessLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refreshLiveness(ctx)
		}
	}
}

// refreshLiveness patches only the IsActive flag, nothing else
func (p *Poller) refreshLiveness(ctx context.Context) {
	p.metrics.RecordPollCycle("liveness")

	sessions, err := p.repo.List(ctx)
	if err != nil {
		p.metrics.RecordPollError("liveness")
		return
	}

	for _, s := range sessions {
		authorized, err := p.accounts.IsAuthorized(ctx, s.PhoneNumber)
		if err != nil {
			p.metrics.RecordPollError("liveness")
			continue
		}
		if authorized == s.IsActive {
			continue
		}
		if err := p.repo.SetActive(ctx, s.PhoneNumber, authorized); err != nil {
			p.metrics.RecordPollError("liveness")
		}
	}
}

// Snapshot returns the merged metrics for one session
func (p *Poller) Snapshot(phone string) (*entities.MetricsSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap, ok := p.snapshots[phone]
	if !ok {
		return nil, false
	}
	copied := *snap
	return &copied, true
}

// Subscribe opens a log tail for phone. The first fetch happens
// immediately, then every tail interval until Unsubscribe. The
// registration and the wait-group join happen in one critical section
// so Stop either sees the tail or refuses it.
func (p *Poller) Subscribe(phone string) (string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &logSubscription{
		id:     uuid.New().String(),
		phone:  phone,
		cancel: cancel,
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		cancel()
		return "", sessionerrors.ErrPollerStopped
	}
	p.subs[sub.id] = sub
	p.wg.Add(1)
	p.mu.Unlock()

	go p.runLogTail(ctx, sub)

	return sub.id, nil
}

// Unsubscribe tears one log tail down
func (p *Poller) Unsubscribe(id string) error {
	p.mu.Lock()
	sub, ok := p.subs[id]
	if ok {
		delete(p.subs, id)
	}
	p.mu.Unlock()

	if !ok {
		return sessionerrors.ErrSubscriptionNotFound
	}
	sub.cancel()
	return nil
}

// Read drains the lines accumulated since the previous read
func (p *Poller) Read(id string) (*entities.LogChunk, error) {
	p.mu.RLock()
	sub, ok := p.subs[id]
	p.mu.RUnlock()
	if !ok {
		return nil, sessionerrors.ErrSubscriptionNotFound
	}

	sub.mu.Lock()
	lines := sub.lines
	sub.lines = nil
	sub.mu.Unlock()

	return &entities.LogChunk{
		PhoneNumber: sub.phone,
		Lines:       lines,
		FetchedAt:   time.Now(),
	}, nil
}

func (p *Poller) runLogTail(ctx context.Context, sub *logSubscription) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.LogTailInterval)
	defer ticker.Stop()

	p.tailOnce(ctx, sub)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tailOnce(ctx, sub)
		}
	}
}

func (p *Poller) tailOnce(ctx context.Context, sub *logSubscription) {
	p.metrics.RecordPollCycle("log_tail")

	entries, err := p.repo.History(ctx, sub.phone, 0)
	if err != nil {
		p.metrics.RecordPollError("log_tail")
		return
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()

	// History is newest first; append unseen entries oldest first
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.ID <= sub.lastSeenID {
			continue
		}
		sub.lastSeenID = e.ID
		sub.lines = append(sub.lines, formatLogLine(&e))
	}
}

func formatLogLine(e *entities.ExportLogEntry) string {
	status := "ok"
	if !e.Success {
		status = "failed"
	}
	line := fmt.Sprintf("%s %s %s", e.CreatedAt.UTC().Format(time.RFC3339), e.Operation, status)
	if e.Detail != "" {
		line += " " + e.Detail
	}
	return line
}
