package infrastructure

import (
	"go.uber.org/fx"

	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/database"
	httpfx "github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/http"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/kafka"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/logger"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/metrics"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/s3"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/telegram"
)

// Module aggregates all infrastructure modules
var Module = fx.Module("infrastructure",
	logger.Module,
	database.Module, // Must be before telegram (telegram depends on *gorm.DB)
	metrics.Module,
	telegram.Module,
	kafka.Module,
	s3.Module,
	httpfx.Module,
)
