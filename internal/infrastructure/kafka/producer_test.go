package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
	"github.com/arhteh596/granovskicrm-sub001/internal/infrastructure/metrics"
)

func newMockedProducer(mock sarama.AsyncProducer) *AuditProducer {
	return &AuditProducer{
		producer: mock,
		topic:    "console.operations",
		logger:   zerolog.Nop(),
		metrics:  metrics.GetDefaultMetrics(),
		errors:   make([]error, 0),
	}
}

// TestNewAuditProducer_EmptyBrokers tests validation of empty brokers
func TestNewAuditProducer_EmptyBrokers(t *testing.T) {
	config := ProducerConfig{
		Brokers: []string{},
		Topic:   "console.operations",
		Logger:  zerolog.Nop(),
	}

	_, err := NewAuditProducer(config)
	if err == nil {
		t.Error("Expected error for empty brokers, got nil")
	}
	if err.Error() != "no kafka brokers specified" {
		t.Errorf("Expected 'no kafka brokers specified', got %v", err)
	}
}

// TestNewAuditProducer_EmptyTopic tests validation of empty topic
func TestNewAuditProducer_EmptyTopic(t *testing.T) {
	config := ProducerConfig{
		Brokers: []string{"localhost:9093"},
		Topic:   "",
		Logger:  zerolog.Nop(),
	}

	_, err := NewAuditProducer(config)
	if err == nil {
		t.Error("Expected error for empty topic, got nil")
	}
	if err.Error() != "kafka topic is required" {
		t.Errorf("Expected 'kafka topic is required', got %v", err)
	}
}

// TestValidateBrokers_Empty tests broker list validation
func TestValidateBrokers_Empty(t *testing.T) {
	err := ValidateBrokers(nil)
	if err == nil {
		t.Error("Expected error for empty broker list, got nil")
	}
	if err.Error() != "no brokers specified" {
		t.Errorf("Expected 'no brokers specified', got %v", err)
	}
}

// TestAuditProducer_SendOperation tests successful event queueing
func TestAuditProducer_SendOperation(t *testing.T) {
	mockProducer := mocks.NewAsyncProducer(t, nil)

	mockProducer.ExpectInputAndSucceed()

	p := newMockedProducer(mockProducer)

	event := &domain.AuditEvent{
		PhoneNumber: "+79991234567",
		Operation:   "export_contacts",
		Artifact:    "+79991234567/contacts/contacts_20260101_120000.csv",
		Success:     true,
		At:          time.Now(),
	}

	ctx := context.Background()
	if err := p.SendOperation(ctx, event); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Errorf("Mock producer close failed: %v", err)
	}
}

// TestAuditProducer_SendOperation_NilEvent tests handling of nil events
func TestAuditProducer_SendOperation_NilEvent(t *testing.T) {
	mockProducer := mocks.NewAsyncProducer(t, nil)
	defer mockProducer.Close()

	p := newMockedProducer(mockProducer)

	err := p.SendOperation(context.Background(), nil)
	if err == nil {
		t.Error("Expected error for nil event, got nil")
	}
	if err.Error() != "audit event is nil" {
		t.Errorf("Expected 'audit event is nil', got %v", err)
	}
}

// TestAuditProducer_SendOperation_MissingFields tests required field validation
func TestAuditProducer_SendOperation_MissingFields(t *testing.T) {
	mockProducer := mocks.NewAsyncProducer(t, nil)
	defer mockProducer.Close()

	p := newMockedProducer(mockProducer)
	ctx := context.Background()

	err := p.SendOperation(ctx, &domain.AuditEvent{Operation: "export_contacts"})
	if err == nil || err.Error() != "phone_number is required" {
		t.Errorf("Expected 'phone_number is required', got %v", err)
	}

	err = p.SendOperation(ctx, &domain.AuditEvent{PhoneNumber: "+79991234567"})
	if err == nil || err.Error() != "operation is required" {
		t.Errorf("Expected 'operation is required', got %v", err)
	}
}

// TestAuditProducer_SendOperation_SetsTimestamp tests timestamp defaulting
func TestAuditProducer_SendOperation_SetsTimestamp(t *testing.T) {
	mockProducer := mocks.NewAsyncProducer(t, nil)

	mockProducer.ExpectInputAndSucceed()

	p := newMockedProducer(mockProducer)

	event := &domain.AuditEvent{
		PhoneNumber: "+79991234567",
		Operation:   "scan_balances",
	}

	if err := p.SendOperation(context.Background(), event); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if event.At.IsZero() {
		t.Error("Expected At to be defaulted, got zero time")
	}

	if err := mockProducer.Close(); err != nil {
		t.Errorf("Mock producer close failed: %v", err)
	}
}

// TestAuditProducer_SendOperation_CancelledContext tests context cancellation
func TestAuditProducer_SendOperation_CancelledContext(t *testing.T) {
	mockProducer := mocks.NewAsyncProducer(t, nil)
	defer mockProducer.Close()

	p := newMockedProducer(mockProducer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	event := &domain.AuditEvent{
		PhoneNumber: "+79991234567",
		Operation:   "export_chats",
	}

	err := p.SendOperation(ctx, event)
	if err == nil {
		t.Error("Expected error for cancelled context, got nil")
	}
}

// TestAuditProducer_SendOperation_MultipleEvents tests sending a sequence of events
func TestAuditProducer_SendOperation_MultipleEvents(t *testing.T) {
	mockProducer := mocks.NewAsyncProducer(t, nil)

	mockProducer.ExpectInputAndSucceed()
	mockProducer.ExpectInputAndSucceed()
	mockProducer.ExpectInputAndSucceed()

	p := newMockedProducer(mockProducer)
	ctx := context.Background()

	operations := []string{"export_contacts", "export_chats", "scan_balances"}
	for _, op := range operations {
		event := &domain.AuditEvent{
			PhoneNumber: "+79991234567",
			Operation:   op,
			Success:     true,
			At:          time.Now(),
		}
		if err := p.SendOperation(ctx, event); err != nil {
			t.Errorf("Failed to send %s event: %v", op, err)
		}
	}

	if err := mockProducer.Close(); err != nil {
		t.Errorf("Mock producer close failed: %v", err)
	}
}

// TestAuditProducer_Close tests graceful shutdown
func TestAuditProducer_Close(t *testing.T) {
	mockProducer := mocks.NewAsyncProducer(t, nil)

	p := newMockedProducer(mockProducer)

	p.wg.Add(2)
	go p.handleSuccesses()
	go p.handleErrors()

	if err := p.Close(); err != nil {
		t.Errorf("Expected no error on close, got %v", err)
	}

	// Idempotent: second close returns the same result
	if err := p.Close(); err != nil {
		t.Errorf("Expected no error on repeated close, got %v", err)
	}
}

// TestAuditProducer_ErrorHandling tests error channel handling
func TestAuditProducer_ErrorHandling(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Errors = true
	config.Producer.Return.Successes = true

	mockProducer := mocks.NewAsyncProducer(t, config)

	p := newMockedProducer(mockProducer)

	p.wg.Add(2)
	go p.handleSuccesses()
	go p.handleErrors()

	mockProducer.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	event := &domain.AuditEvent{
		PhoneNumber: "+79991234567",
		Operation:   "export_contacts",
		At:          time.Now(),
	}

	// Async send: the queueing itself succeeds
	if err := p.SendOperation(context.Background(), event); err != nil {
		t.Errorf("Expected no error from async send, got %v", err)
	}

	// Give the error handler time to process
	time.Sleep(100 * time.Millisecond)

	if err := p.Close(); err == nil {
		t.Error("Expected close error due to send failure, got nil")
	}
}

// TestAuditProducer_SuccessHandling tests success channel handling
func TestAuditProducer_SuccessHandling(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	mockProducer := mocks.NewAsyncProducer(t, config)

	p := newMockedProducer(mockProducer)

	p.wg.Add(2)
	go p.handleSuccesses()
	go p.handleErrors()

	mockProducer.ExpectInputAndSucceed()

	event := &domain.AuditEvent{
		PhoneNumber: "+79991234567",
		Operation:   "export_contacts",
		Success:     true,
		At:          time.Now(),
	}

	if err := p.SendOperation(context.Background(), event); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := p.Close(); err != nil {
		t.Errorf("Expected no error on close, got %v", err)
	}
}

// TestAuditProducer_IsHealthy tests health reporting over the producer lifecycle
func TestAuditProducer_IsHealthy(t *testing.T) {
	mockProducer := mocks.NewAsyncProducer(t, nil)

	p := newMockedProducer(mockProducer)

	if !p.IsHealthy() {
		t.Error("Expected fresh producer to be healthy")
	}

	p.wg.Add(2)
	go p.handleSuccesses()
	go p.handleErrors()

	if err := p.Close(); err != nil {
		t.Errorf("Expected no error on close, got %v", err)
	}

	if p.IsHealthy() {
		t.Error("Expected closed producer to be unhealthy")
	}
}
