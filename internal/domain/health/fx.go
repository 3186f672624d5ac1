package health

import (
	"go.uber.org/fx"

	healthhttp "github.com/arhteh596/granovskicrm-sub001/internal/domain/health/delivery/http"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/health/deps"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/http/server"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/telegram"
)

// Module provides health check components for fx DI
var Module = fx.Module("health",
	fx.Provide(
		NewClientPoolFx,
		healthhttp.NewHealthHandler,
		healthhttp.NewRouter,
	),
	fx.Invoke(RegisterRoutes),
)

// NewClientPoolFx adapts the Telegram client pool for the health check
func NewClientPoolFx(pool *telegram.SessionClientPool) deps.ClientPool {
	return pool
}

// RegisterRoutes registers health routes on the server
func RegisterRoutes(server *server.Server, router *healthhttp.Router) {
	router.RegisterRoutes(server.Router)
}
