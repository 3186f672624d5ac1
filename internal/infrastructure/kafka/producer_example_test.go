package kafka_test

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/kafka"
)

// ExampleAuditProducer demonstrates how to use AuditProducer
// to publish operation audit events to a Kafka topic
func ExampleAuditProducer() {
	// Create logger
	logger := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	// Configure producer
	config := kafka.ProducerConfig{
		Brokers:         []string{"localhost:9093"},
		Topic:           "console.operations",
		Logger:          logger,
		MaxMessageBytes: 1000000, // 1MB
		MaxRetries:      5,
	}

	// Create producer
	producer, err := kafka.NewAuditProducer(config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Kafka producer")
	}
	defer producer.Close()

	// Create audit event
	event := &domain.AuditEvent{
		PhoneNumber: "+79991234567",
		Operation:   "export_contacts",
		Artifact:    "+79991234567/contacts/contacts_20260101_120000.csv",
		Success:     true,
		At:          time.Now().UTC(),
	}

	// Publish the event
	ctx := context.Background()
	if err := producer.SendOperation(ctx, event); err != nil {
		logger.Error().Err(err).Msg("Failed to send audit event")
		return
	}

	logger.Info().
		Str("operation", event.Operation).
		Str("phone", event.PhoneNumber).
		Msg("Audit event sent to Kafka successfully")
}

// ExampleAuditProducer_withContext demonstrates using context for cancellation
func ExampleAuditProducer_withContext() {
	logger := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	config := kafka.ProducerConfig{
		Brokers: []string{"localhost:9093"},
		Topic:   "console.operations",
		Logger:  logger,
	}

	producer, err := kafka.NewAuditProducer(config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create producer")
	}
	defer producer.Close()

	// Context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := &domain.AuditEvent{
		PhoneNumber: "+79991234567",
		Operation:   "scan_balances",
		Success:     false,
		Detail:      "telegram: rate_limited",
		At:          time.Now().UTC(),
	}

	if err := producer.SendOperation(ctx, event); err != nil {
		logger.Error().Err(err).Msg("Send failed or timed out")
	} else {
		logger.Info().Msg("Audit event sent successfully")
	}
}
