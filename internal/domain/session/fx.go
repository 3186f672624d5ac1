package session

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/arhteh596/granovskicrm-sub001/config"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	sessionhttp "github.com/arhteh596/granovskicrm-sub001/internal/domain/session/delivery/http"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/session/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/session/usecase/business"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/http/server"
	"github.com/arhteh596/granovskicrm-sub001/internal/repository/postgres"
	"github.com/arhteh596/granovskicrm-sub001/pkg/httputil"
)

// Module provides session tracking components for fx DI
var Module = fx.Module("session",
	fx.Provide(NewSessionRepositoryFx),
	fx.Provide(NewPollerFx),
	fx.Provide(NewSessionUseCaseFx),
	fx.Provide(NewSessionHandlerFx),
	fx.Provide(NewSessionRouterFx),
	fx.Invoke(RegisterRoutes),
)

// NewSessionRepositoryFx creates the postgres session repository for fx DI
func NewSessionRepositoryFx(db *gorm.DB) deps.SessionRepository {
	return postgres.NewSessionRepository(db)
}

// NewPollerFx creates the session poller with lifecycle hooks for fx DI
func NewPollerFx(
	lc fx.Lifecycle,
	repo deps.SessionRepository,
	accounts domain.AccountGateway,
	artifacts domain.ArtifactStore,
	pollerCfg *config.PollerConfig,
	logger zerolog.Logger,
) *business.Poller {
	poller := business.NewPoller(repo, accounts, artifacts, business.PollerConfig{
		MetricsInterval:  pollerCfg.MetricsInterval,
		LivenessInterval: pollerCfg.LivenessInterval,
		LogTailInterval:  pollerCfg.LogTailInterval,
	}, logger)

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			poller.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			poller.Stop()
			return nil
		},
	})

	return poller
}

// NewSessionUseCaseFx creates the session use case for fx DI
func NewSessionUseCaseFx(repo deps.SessionRepository, poller *business.Poller, logger zerolog.Logger) deps.SessionService {
	return business.NewSessionUseCase(repo, poller, logger)
}

// NewSessionHandlerFx creates the session handler for fx DI
func NewSessionHandlerFx(useCase deps.SessionService, logger zerolog.Logger) *sessionhttp.SessionHandler {
	return sessionhttp.NewSessionHandler(useCase, logger)
}

// NewSessionRouterFx creates the session router for fx DI
func NewSessionRouterFx(handler *sessionhttp.SessionHandler, middleware httputil.Middleware, logger zerolog.Logger) *sessionhttp.Router {
	return sessionhttp.NewRouter(handler, middleware, logger)
}

// RegisterRoutes registers session routes on the server
func RegisterRoutes(server *server.Server, router *sessionhttp.Router) {
	router.RegisterRoutes(server.Router)
}
