package authflow

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/arhteh596/granovskicrm-sub001/config"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	flowhttp "github.com/arhteh596/granovskicrm-sub001/internal/domain/authflow/delivery/http"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/authflow/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/authflow/usecase/business"
	sessiondeps "github.com/arhteh596/granovskicrm-sub001/internal/domain/session/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/http/server"
	"github.com/arhteh596/granovskicrm-sub001/pkg/httputil"
)

// Module provides the auth flow components for fx DI
var Module = fx.Module("authflow",
	fx.Provide(NewSessionRecorderFx),
	fx.Provide(NewAuthFlowUseCaseFx),
	fx.Provide(NewAuthFlowHandlerFx),
	fx.Provide(NewAuthFlowRouterFx),
	fx.Invoke(RegisterRoutes),
)

// NewSessionRecorderFx adapts the session repository for flow success
// recording
func NewSessionRecorderFx(repo sessiondeps.SessionRepository) deps.SessionRecorder {
	return repo
}

// NewAuthFlowUseCaseFx creates the auth flow use case for fx DI
func NewAuthFlowUseCaseFx(
	lc fx.Lifecycle,
	gateway domain.AuthGateway,
	accounts domain.AccountGateway,
	recorder deps.SessionRecorder,
	audit domain.AuditProducer,
	consoleCfg *config.ConsoleConfig,
	logger zerolog.Logger,
) deps.AuthFlowService {
	uc := business.NewAuthFlowUseCase(gateway, accounts, recorder, audit, business.Config{
		FlowTTL:         consoleCfg.AuthFlowTTL,
		DefaultCooldown: consoleCfg.ResendCooldown,
		EmailRotation:   len(consoleCfg.EmailRotation) > 0,
	}, logger)

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			uc.Stop()
			return nil
		},
	})

	return uc
}

// NewAuthFlowHandlerFx creates the auth flow handler for fx DI
func NewAuthFlowHandlerFx(useCase deps.AuthFlowService, logger zerolog.Logger) *flowhttp.AuthFlowHandler {
	return flowhttp.NewAuthFlowHandler(useCase, logger)
}

// NewAuthFlowRouterFx creates the auth flow router for fx DI
func NewAuthFlowRouterFx(handler *flowhttp.AuthFlowHandler, middleware httputil.Middleware, logger zerolog.Logger) *flowhttp.Router {
	return flowhttp.NewRouter(handler, middleware, logger)
}

// RegisterRoutes registers auth flow routes on the server
func RegisterRoutes(server *server.Server, router *flowhttp.Router) {
	router.RegisterRoutes(server.Router)
}
