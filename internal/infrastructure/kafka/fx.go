package kafka

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/arhteh596/granovskicrm-sub001/config"
	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
)

// Module provides the Kafka audit producer for fx DI
var Module = fx.Module("kafka",
	fx.Provide(NewAuditProducerFx),
)

// NewAuditProducerFx creates the audit producer with lifecycle hooks
func NewAuditProducerFx(
	lc fx.Lifecycle,
	kafkaCfg *config.KafkaConfig,
	logger zerolog.Logger,
) (domain.AuditProducer, error) {
	producer, err := NewAuditProducer(ProducerConfig{
		Brokers: kafkaCfg.Brokers,
		Topic:   kafkaCfg.AuditTopic,
		Logger:  logger.With().Str("component", "audit-producer").Logger(),
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return producer.Close()
		},
	})

	return producer, nil
}
