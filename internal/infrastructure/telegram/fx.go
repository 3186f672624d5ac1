package telegram

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/arhteh596/granovskicrm-sub001/config"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
)

// Module provides the Telegram gateways for fx DI
var Module = fx.Module("telegram",
	fx.Provide(
		NewSessionClientPoolFx,
		NewAuthFlowManagerFx,
		NewAccountOperationsFx,
	),
)

// NewSessionClientPoolFx creates the client pool with lifecycle hooks for fx DI
func NewSessionClientPoolFx(
	lc fx.Lifecycle,
	db *gorm.DB,
	telegramCfg *config.TelegramConfig,
	logger zerolog.Logger,
) *SessionClientPool {
	pool := NewSessionClientPool(db, telegramCfg, logger.With().Str("component", "client-pool").Logger())

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			pool.Shutdown()
			logger.Info().Msg("Telegram client pool shut down")
			return nil
		},
	})

	return pool
}

// NewAuthFlowManagerFx creates the auth flow manager with lifecycle hooks for fx DI
func NewAuthFlowManagerFx(
	lc fx.Lifecycle,
	db *gorm.DB,
	telegramCfg *config.TelegramConfig,
	consoleCfg *config.ConsoleConfig,
	logger zerolog.Logger,
) domain.AuthGateway {
	manager := NewAuthFlowManager(db, telegramCfg, consoleCfg, logger.With().Str("component", "auth-flow").Logger())

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			manager.Stop()
			return nil
		},
	})

	return manager
}

// NewAccountOperationsFx creates the account gateway for fx DI
func NewAccountOperationsFx(
	pool *SessionClientPool,
	consoleCfg *config.ConsoleConfig,
	logger zerolog.Logger,
) domain.AccountGateway {
	return NewAccountOperations(pool, consoleCfg, logger.With().Str("component", "account-ops").Logger())
}
