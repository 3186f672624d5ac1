package business

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/console/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/console/entities"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/metrics"
)

// ArtifactExportCache answers export triggers from stored artifacts.
// A hit means the expensive Telegram sweep is skipped entirely.
type ArtifactExportCache struct {
	store   domain.ArtifactStore
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewArtifactExportCache creates a new export cache
func NewArtifactExportCache(store domain.ArtifactStore, logger zerolog.Logger) *ArtifactExportCache {
	return &ArtifactExportCache{
		store:   store,
		metrics: metrics.GetDefaultMetrics(),
		logger:  logger.With().Str("component", "export-cache").Logger(),
	}
}

// Lookup returns the newest stored artifact of the kind, if any.
// Artifact names embed their creation timestamp, so the listing's last
// entry is the latest.
func (c *ArtifactExportCache) Lookup(ctx context.Context, phone string, kind entities.ExportKind) (*domain.Artifact, bool) {
	listed, err := c.store.List(ctx, phone, string(kind))
	if err != nil {
		c.logger.Debug().Err(err).Str("kind", string(kind)).Msg("export cache listing failed")
		c.metrics.RecordExportCacheMiss()
		return nil, false
	}
	if len(listed) == 0 {
		c.metrics.RecordExportCacheMiss()
		return nil, false
	}

	c.metrics.RecordExportCacheHit()
	latest := listed[len(listed)-1]
	return &latest, true
}

// Ensure ArtifactExportCache implements deps.ExportCache
var _ deps.ExportCache = (*ArtifactExportCache)(nil)
