package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/arhteh596/granovskicrm-sub001/config"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/authflow"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/console"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/health"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/patterns"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain/session"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure"
)

// CreateApp creates the fx application options
func CreateApp() fx.Option {
	return fx.Options(
		fx.Provide(
			config.Out,
			context.Background,
		),
		infrastructure.Module,
		// Domain modules
		health.Module,
		session.Module,
		authflow.Module,
		console.Module,
		patterns.Module, // Must be after console.Module (shares its single-flight guard)
	)
}
