package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/arhteh596/granovskicrm-sub001/config"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/metrics"
)

// connectTimeout bounds how long we wait for client.Run to come up
const connectTimeout = 30 * time.Second

// maskPhoneNumber masks phone number for logging (keeps first 2 and last 2 digits)
func maskPhoneNumber(phone string) string {
	if len(phone) < 4 {
		return "***"
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}

// clientHandle owns one running MTProto client. client.Run blocks for the
// client's whole lifetime, so the handle parks it on a goroutine and keeps
// the API object once the connection is up.
type clientHandle struct {
	client *telegram.Client
	api    *tg.Client
	cancel context.CancelFunc
	ready  chan struct{}
	done   chan struct{}
	runErr error // valid after done is closed
}

// startClient connects a client over the given session storage and waits
// until the connection is usable
func startClient(ctx context.Context, apiID int, apiHash string, storage session.Storage, logger zerolog.Logger) (*clientHandle, error) {
	client := telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: storage,
	})

	// The run context is detached from the request context: the client must
	// outlive the HTTP request that created it.
	runCtx, cancel := context.WithCancel(context.Background())

	h := &clientHandle{
		client: client,
		cancel: cancel,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		h.runErr = client.Run(runCtx, func(ctx context.Context) error {
			h.api = client.API()
			close(h.ready)
			<-ctx.Done()
			return ctx.Err()
		})
		if h.runErr != nil && runCtx.Err() == nil {
			logger.Warn().Err(h.runErr).Msg("telegram client stopped unexpectedly")
		}
	}()

	select {
	case <-h.ready:
		return h, nil
	case <-h.done:
		cancel()
		return nil, fmt.Errorf("telegram client failed to start: %w", h.runErr)
	case <-ctx.Done():
		cancel()
		<-h.done
		return nil, ctx.Err()
	case <-time.After(connectTimeout):
		cancel()
		<-h.done
		return nil, fmt.Errorf("telegram client connect timeout")
	}
}

// Close stops the client and waits for its run loop to exit
func (h *clientHandle) Close() {
	h.cancel()
	<-h.done
}

// Alive reports whether the run loop is still going
func (h *clientHandle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// SessionClientPool keeps one live client per stored session. Clients are
// started lazily on first use and reused across operations.
type SessionClientPool struct {
	db           *gorm.DB
	apiID        int
	apiHash      string
	floodRetries int
	limiter      *rate.Limiter
	metrics      *metrics.Metrics
	logger       zerolog.Logger

	mu      sync.Mutex
	clients map[string]*clientHandle
}

// NewSessionClientPool creates a client pool over gorm-backed session storage
func NewSessionClientPool(db *gorm.DB, cfg *config.TelegramConfig, logger zerolog.Logger) *SessionClientPool {
	return &SessionClientPool{
		db:           db,
		apiID:        cfg.APIID,
		apiHash:      cfg.APIHash,
		floodRetries: cfg.FloodRetries,
		limiter:      rate.NewLimiter(rate.Every(time.Second), cfg.RatePerSec),
		metrics:      metrics.GetDefaultMetrics(),
		logger:       logger.With().Str("component", "session_client_pool").Logger(),
		clients:      make(map[string]*clientHandle),
	}
}

// handleFor returns the live client for phone, starting one if needed
func (p *SessionClientPool) handleFor(ctx context.Context, phone string) (*clientHandle, error) {
	p.mu.Lock()
	if h, ok := p.clients[phone]; ok && h.Alive() {
		p.mu.Unlock()
		return h, nil
	}
	p.mu.Unlock()

	storage, err := NewPostgresSessionStorage(p.db, phone)
	if err != nil {
		return nil, err
	}

	h, err := startClient(ctx, p.apiID, p.apiHash, storage, p.logger.With().Str("phone", maskPhoneNumber(phone)).Logger())
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	// Another request may have raced us; keep the first live handle
	if existing, ok := p.clients[phone]; ok && existing.Alive() {
		p.mu.Unlock()
		h.Close()
		return existing, nil
	}
	p.clients[phone] = h
	p.mu.Unlock()

	return h, nil
}

// With runs fn against the session's client, rate limited and with
// flood-wait aware retries. Errors come back as domain.RemoteError.
func (p *SessionClientPool) With(ctx context.Context, phone string, fn func(ctx context.Context, client *telegram.Client, api *tg.Client) error) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	h, err := p.handleFor(ctx, phone)
	if err != nil {
		return mapRemoteError(err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.floodRetries; attempt++ {
		err := fn(ctx, h.client, h.api)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := tgerr.AsFloodWait(err); ok && attempt < p.floodRetries {
			p.metrics.RecordTelegramRateLimit()
			p.logger.Warn().
				Str("phone", maskPhoneNumber(phone)).
				Dur("wait", wait).
				Int("attempt", attempt+1).
				Msg("flood wait, retrying")
			select {
			case <-time.After(wait + time.Second):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		break
	}

	return mapRemoteError(lastErr)
}

// Authorized reports whether the stored session still signs requests
func (p *SessionClientPool) Authorized(ctx context.Context, phone string) (bool, error) {
	var authorized bool
	err := p.With(ctx, phone, func(ctx context.Context, client *telegram.Client, _ *tg.Client) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return err
		}
		authorized = status.Authorized
		return nil
	})
	if err != nil {
		return false, err
	}
	return authorized, nil
}

// Drop closes and forgets the client for phone
func (p *SessionClientPool) Drop(phone string) {
	p.mu.Lock()
	h, ok := p.clients[phone]
	delete(p.clients, phone)
	p.mu.Unlock()

	if ok {
		h.Close()
		p.logger.Debug().Str("phone", maskPhoneNumber(phone)).Msg("session client dropped")
	}
}

// ActiveClients returns the number of live pooled clients
func (p *SessionClientPool) ActiveClients() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// Shutdown closes every pooled client
func (p *SessionClientPool) Shutdown() {
	p.mu.Lock()
	handles := make([]*clientHandle, 0, len(p.clients))
	for _, h := range p.clients {
		handles = append(handles, h)
	}
	p.clients = make(map[string]*clientHandle)
	p.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}

	p.logger.Info().Int("closed", len(handles)).Msg("session client pool shut down")
}
