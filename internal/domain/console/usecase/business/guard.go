package business

import (
	"sync"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain/console/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/metrics"
)

// SingleFlightGuard admits one in-flight operation per console
// instance. A denied trigger is dropped, never queued.
type SingleFlightGuard struct {
	mu      sync.Mutex
	busy    map[string]bool
	metrics *metrics.Metrics
}

// NewSingleFlightGuard creates a new guard
func NewSingleFlightGuard() *SingleFlightGuard {
	return &SingleFlightGuard{
		busy:    make(map[string]bool),
		metrics: metrics.GetDefaultMetrics(),
	}
}

// TryAcquire claims the console's slot; false when an operation is
// already in flight
func (g *SingleFlightGuard) TryAcquire(consoleID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.busy[consoleID] {
		g.metrics.RecordSingleFlightRejection()
		return false
	}
	g.busy[consoleID] = true
	return true
}

// Release frees the console's slot
func (g *SingleFlightGuard) Release(consoleID string) {
	g.mu.Lock()
	delete(g.busy, consoleID)
	g.mu.Unlock()
}

// Ensure SingleFlightGuard implements deps.Guard
var _ deps.Guard = (*SingleFlightGuard)(nil)
