package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/metrics"
)

const (
	// maxStoredErrors is the maximum number of errors to keep in memory
	// This prevents unbounded memory growth during long-running operations
	maxStoredErrors = 100
)

// AuditProducer publishes operation audit events using an asynchronous producer
type AuditProducer struct {
	producer  sarama.AsyncProducer
	topic     string
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
	closed    bool
	closeMu   sync.Mutex
	errors    []error
	errorsMu  sync.Mutex
}

// ProducerConfig holds configuration for the audit producer
type ProducerConfig struct {
	Brokers         []string
	Topic           string
	Logger          zerolog.Logger
	MaxMessageBytes int // default: 1MB
	MaxRetries      int // default: 5
}

// ValidateBrokers checks if Kafka brokers are accessible
// Returns error if cannot connect to any broker
func ValidateBrokers(brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no brokers specified")
	}

	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0

	client, err := sarama.NewClient(brokers, config)
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka brokers: %w", err)
	}
	defer client.Close()

	if err := client.RefreshMetadata(); err != nil {
		return fmt.Errorf("failed to refresh metadata from Kafka: %w", err)
	}

	return nil
}

// NewAuditProducer creates a new audit producer
//
// Configuration highlights:
// - Asynchronous producer for high throughput
// - Snappy compression for bandwidth optimization
// - Idempotent mode for at-least-once delivery with deduplication
// - Hash partitioner based on phone number for per-session ordering
func NewAuditProducer(cfg ProducerConfig) (*AuditProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers specified")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 1000000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}

	config := sarama.NewConfig()

	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Compression = sarama.CompressionSnappy

	// Idempotent mode: at-least-once delivery with automatic deduplication
	config.Producer.Idempotent = true
	config.Producer.RequiredAcks = sarama.WaitForAll // Required for idempotent producer
	config.Net.MaxOpenRequests = 1                   // Required for idempotent producer
	config.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	config.Producer.Retry.Max = cfg.MaxRetries

	// Partitioner: hash by phone number for event ordering per session
	config.Producer.Partitioner = sarama.NewHashPartitioner

	config.ClientID = "session-console-producer"
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	p := &AuditProducer{
		producer: producer,
		topic:    cfg.Topic,
		logger:   cfg.Logger,
		metrics:  metrics.GetDefaultMetrics(),
		errors:   make([]error, 0),
	}

	p.wg.Add(2)
	go p.handleSuccesses()
	go p.handleErrors()

	cfg.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka audit producer initialized successfully")

	return p, nil
}

// SendOperation queues an audit event for asynchronous delivery
//
// Uses the phone number as the partition key so events for one session
// stay ordered. Actual send errors surface via the error channel.
func (p *AuditProducer) SendOperation(ctx context.Context, event *domain.AuditEvent) error {
	if event == nil {
		return fmt.Errorf("audit event is nil")
	}
	if event.PhoneNumber == "" {
		return fmt.Errorf("phone_number is required")
	}
	if event.Operation == "" {
		return fmt.Errorf("operation is required")
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled before sending: %w", ctx.Err())
	default:
	}

	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.PhoneNumber),
		Value:     sarama.ByteEncoder(value),
		Timestamp: event.At,
	}

	select {
	case p.producer.Input() <- msg:
		p.logger.Debug().
			Str("operation", event.Operation).
			Msg("Audit event queued for sending to Kafka")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while sending message: %w", ctx.Err())
	}
}

func (p *AuditProducer) handleSuccesses() {
	defer p.wg.Done()

	for msg := range p.producer.Successes() {
		p.metrics.RecordKafkaMessage()
		p.logger.Debug().
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("Audit event sent to Kafka successfully")
	}

	p.logger.Info().Msg("Success handler stopped")
}

func (p *AuditProducer) handleErrors() {
	defer p.wg.Done()

	for producerErr := range p.producer.Errors() {
		p.metrics.RecordKafkaError("produce")
		p.logger.Error().
			Err(producerErr.Err).
			Str("topic", producerErr.Msg.Topic).
			Msg("Failed to send audit event to Kafka")

		p.errorsMu.Lock()
		if len(p.errors) < maxStoredErrors {
			p.errors = append(p.errors, producerErr.Err)
		} else if len(p.errors) == maxStoredErrors {
			p.logger.Warn().
				Int("max_errors", maxStoredErrors).
				Msg("Maximum stored errors limit reached, subsequent errors will be dropped")
			p.errors = append(p.errors, fmt.Errorf("max errors limit reached, subsequent errors dropped"))
		}
		p.errorsMu.Unlock()
	}

	p.logger.Info().Msg("Error handler stopped")
}

// IsHealthy returns true if the producer is healthy and can send messages
func (p *AuditProducer) IsHealthy() bool {
	if p.producer == nil {
		return false
	}

	p.closeMu.Lock()
	isClosed := p.closed
	p.closeMu.Unlock()

	if isClosed {
		return false
	}

	p.errorsMu.Lock()
	errorCount := len(p.errors)
	p.errorsMu.Unlock()

	return errorCount < maxStoredErrors
}

// Close gracefully shuts down the producer with a default 10-second timeout
func (p *AuditProducer) Close() error {
	return p.CloseWithTimeout(10 * time.Second)
}

// CloseWithTimeout gracefully shuts down the producer
//
// Closes the producer, waits for pending messages to flush and for handler
// goroutines to finish, then reports any errors collected during operation.
// Idempotent - can be called multiple times safely.
func (p *AuditProducer) CloseWithTimeout(timeout time.Duration) error {
	p.closeOnce.Do(func() {
		p.logger.Info().
			Dur("timeout", timeout).
			Msg("Closing Kafka audit producer")

		p.closeMu.Lock()
		p.closed = true
		p.closeMu.Unlock()

		var errs []error

		if err := p.producer.Close(); err != nil {
			p.logger.Error().Err(err).Msg("Error closing Kafka producer")
			errs = append(errs, fmt.Errorf("producer close failed: %w", err))
		}

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			p.logger.Debug().Msg("All handler goroutines finished")
		case <-time.After(timeout):
			p.logger.Error().
				Dur("timeout", timeout).
				Msg("Timeout waiting for handlers to finish")
			errs = append(errs, fmt.Errorf("close timeout after %s: handlers did not finish in time", timeout))
		}

		p.errorsMu.Lock()
		errorCount := len(p.errors)
		p.errorsMu.Unlock()

		if errorCount > 0 {
			errs = append(errs, fmt.Errorf("producer had %d send errors during operation", errorCount))
		}

		p.closeMu.Lock()
		if len(errs) > 0 {
			if len(errs) == 1 {
				p.closeErr = errs[0]
			} else {
				errMsg := "multiple errors during close:"
				for i, err := range errs {
					errMsg += fmt.Sprintf(" [%d] %v;", i+1, err)
				}
				p.closeErr = fmt.Errorf("%s", errMsg)
			}
			p.logger.Error().Err(p.closeErr).Msg("Kafka producer closed with errors")
		} else {
			p.logger.Info().Msg("Kafka producer closed successfully")
		}
		p.closeMu.Unlock()
	})

	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	return p.closeErr
}

// Ensure AuditProducer implements domain.AuditProducer
var _ domain.AuditProducer = (*AuditProducer)(nil)
