package console

import (
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	consolehttp "github.com/arhteh596/granovskicrm-sub001/internal/domain/console/delivery/http"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/console/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/console/usecase/business"
	sessiondeps "github.com/arhteh596/granovskicrm-sub001/internal/domain/session/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/http/server"
	"github.com/arhteh596/granovskicrm-sub001/pkg/httputil"
)

// Module provides the console operation components for fx DI
var Module = fx.Module("console",
	fx.Provide(NewGuardFx),
	fx.Provide(NewExportCacheFx),
	fx.Provide(NewConsoleUseCaseFx),
	fx.Provide(NewConsoleHandlerFx),
	fx.Provide(NewConsoleRouterFx),
	fx.Invoke(RegisterRoutes),
)

// NewGuardFx creates the single-flight guard for fx DI
func NewGuardFx() deps.Guard {
	return business.NewSingleFlightGuard()
}

// NewExportCacheFx creates the export cache for fx DI
func NewExportCacheFx(store domain.ArtifactStore, logger zerolog.Logger) deps.ExportCache {
	return business.NewArtifactExportCache(store, logger)
}

// NewConsoleUseCaseFx creates the console use case for fx DI
func NewConsoleUseCaseFx(
	guard deps.Guard,
	cache deps.ExportCache,
	accounts domain.AccountGateway,
	store domain.ArtifactStore,
	sessions sessiondeps.SessionRepository,
	audit domain.AuditProducer,
	logger zerolog.Logger,
) deps.ConsoleService {
	return business.NewConsoleUseCase(guard, cache, accounts, store, sessions, audit, logger)
}

// NewConsoleHandlerFx creates the console handler for fx DI
func NewConsoleHandlerFx(useCase deps.ConsoleService, logger zerolog.Logger) *consolehttp.ConsoleHandler {
	return consolehttp.NewConsoleHandler(useCase, logger)
}

// NewConsoleRouterFx creates the console router for fx DI
func NewConsoleRouterFx(handler *consolehttp.ConsoleHandler, middleware httputil.Middleware, logger zerolog.Logger) *consolehttp.Router {
	return consolehttp.NewRouter(handler, middleware, logger)
}

// RegisterRoutes registers console routes on the server
func RegisterRoutes(server *server.Server, router *consolehttp.Router) {
	router.RegisterRoutes(server.Router)
}
