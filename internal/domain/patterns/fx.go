package patterns

import (
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/arhteh596/granovskicrm-sub001/config"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	consoledeps "github.com/arhteh596/granovskicrm-sub001/internal/domain/console/deps"
	patternhttp "github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/delivery/http"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns/usecase/business"
	sessiondeps "github.com/arhteh596/granovskicrm-sub001/internal/domain/session/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/http/server"
	"github.com/arhteh596/granovskicrm-sub001/pkg/httputil"
)

// Module provides the pattern search and browser components for fx DI
var Module = fx.Module("patterns",
	fx.Provide(NewGuardFx),
	fx.Provide(NewPatternUseCaseFx),
	fx.Provide(NewPatternHandlerFx),
	fx.Provide(NewPatternRouterFx),
	fx.Invoke(RegisterRoutes),
)

// NewGuardFx reuses the console's single-flight guard so a pattern
// search and any other operation on the same console exclude each other
func NewGuardFx(guard consoledeps.Guard) deps.Guard {
	return guard
}

// NewPatternUseCaseFx creates the pattern use case for fx DI
func NewPatternUseCaseFx(
	accounts domain.AccountGateway,
	store domain.ArtifactStore,
	guard deps.Guard,
	sessions sessiondeps.SessionRepository,
	audit domain.AuditProducer,
	consoleCfg *config.ConsoleConfig,
	logger zerolog.Logger,
) deps.PatternService {
	return business.NewPatternUseCase(
		accounts,
		store,
		guard,
		sessions,
		audit,
		consoleCfg.SearchPatterns,
		consoleCfg.PatternPageSize,
		logger,
	)
}

// NewPatternHandlerFx creates the pattern handler for fx DI
func NewPatternHandlerFx(useCase deps.PatternService, logger zerolog.Logger) *patternhttp.PatternHandler {
	return patternhttp.NewPatternHandler(useCase, logger)
}

// NewPatternRouterFx creates the pattern router for fx DI
func NewPatternRouterFx(handler *patternhttp.PatternHandler, middleware httputil.Middleware, logger zerolog.Logger) *patternhttp.Router {
	return patternhttp.NewRouter(handler, middleware, logger)
}

// RegisterRoutes registers pattern routes on the server
func RegisterRoutes(server *server.Server, router *patternhttp.Router) {
	router.RegisterRoutes(server.Router)
}
