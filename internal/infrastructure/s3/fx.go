package s3

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/arhteh596/granovskicrm-sub001/config"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
)

// Module provides S3/MinIO artifact store for fx DI
var Module = fx.Module("s3",
	fx.Provide(newConfig),
	fx.Provide(NewClientFx),
	fx.Provide(provideArtifactStore),
)

// provideArtifactStore provides domain.ArtifactStore interface from S3 Client
func provideArtifactStore(client *Client) domain.ArtifactStore {
	return client
}

func newConfig(cfg *config.S3Config) *Config {
	return &Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	}
}

// NewClientFx creates the S3 client and ensures the bucket on startup
func NewClientFx(lc fx.Lifecycle, cfg *Config, logger zerolog.Logger) (*Client, error) {
	sub := logger.With().Str("component", "artifact-store").Logger()
	client, err := NewClient(cfg, &sub)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.EnsureBucket(ctx)
		},
	})

	return client, nil
}
