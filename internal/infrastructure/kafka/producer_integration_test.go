//go:build integration
// +build integration

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
)

// TestAuditProducer_SendOperation_Integration is an integration test
// that publishes 10 audit events to Kafka and verifies delivery
//
// Prerequisites:
// - Kafka running at localhost:9093
// - Topic "console.operations" created
//
// Run with: go test -tags=integration -v ./internal/infrastructure/kafka/...
func TestAuditProducer_SendOperation_Integration(t *testing.T) {
	// Skip if running in CI or without Kafka
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	// Create producer
	config := ProducerConfig{
		Brokers: []string{"localhost:9093"},
		Topic:   "console.operations",
		Logger:  zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger(),
	}

	producer, err := NewAuditProducer(config)
	if err != nil {
		t.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	ctx := context.Background()

	// Publish 10 audit events
	for i := 1; i <= 10; i++ {
		event := &domain.AuditEvent{
			PhoneNumber: "+79991234567",
			Operation:   "export_contacts",
			Artifact:    fmt.Sprintf("+79991234567/contacts/contacts_2026010%d_120000.csv", i),
			Success:     true,
			At:          time.Now().Add(time.Duration(-i) * time.Minute),
		}

		if err := producer.SendOperation(ctx, event); err != nil {
			t.Errorf("Failed to send audit event %d: %v", i, err)
		}

		t.Logf("Sent audit event %d to Kafka", i)
	}

	// Wait for all messages to be processed
	time.Sleep(2 * time.Second)

	if !producer.IsHealthy() {
		t.Error("Producer reported unhealthy after sending")
	}

	t.Log("Successfully sent 10 audit events to Kafka topic 'console.operations'")
}

// TestAuditEvent_JSONSerialization tests that AuditEvent serializes to the
// snake_case wire format consumed by the CRM side
func TestAuditEvent_JSONSerialization(t *testing.T) {
	event := &domain.AuditEvent{
		PhoneNumber: "+79991234567",
		Operation:   "export_chat",
		Artifact:    "+79991234567/chats/chat_durov_20260101_120000.json",
		Success:     true,
		At:          time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal AuditEvent: %v", err)
	}

	var actual map[string]interface{}
	if err := json.Unmarshal(jsonData, &actual); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	if actual["phone_number"] != "+79991234567" {
		t.Errorf("phone_number mismatch: got %v", actual["phone_number"])
	}
	if actual["operation"] != "export_chat" {
		t.Errorf("operation mismatch: got %v", actual["operation"])
	}
	if actual["artifact"] != event.Artifact {
		t.Errorf("artifact mismatch: got %v", actual["artifact"])
	}
	if actual["success"] != true {
		t.Errorf("success mismatch: got %v", actual["success"])
	}
	if actual["at"] != "2026-01-01T12:00:00Z" {
		t.Errorf("at mismatch: got %v", actual["at"])
	}

	// Empty detail is omitted from the wire format
	if _, present := actual["detail"]; present {
		t.Error("Expected empty detail to be omitted")
	}

	t.Logf("JSON serialization test passed. Output:\n%s", string(jsonData))
}
