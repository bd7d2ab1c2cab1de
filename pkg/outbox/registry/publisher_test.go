package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packdrop-backend/pkg/config"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	deliveryID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.EarningPostedEvent{
		Subject:    enums.PayoutUserDriver,
		AccountID:  uuid.New(),
		Reference:  "ERN-" + deliveryID.String(),
		Amount:     decimal.RequireFromString("780"),
		DeliveryID: &deliveryID,
	})

	event := models.OutboxEvent{
		EventType:     enums.EventEarningPosted,
		AggregateType: enums.AggregateDriverEarning,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "earnings-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.EarningPostedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.DeliveryID == nil || *payload.DeliveryID != deliveryID {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if !payload.Amount.Equal(decimal.RequireFromString("780")) {
		t.Fatalf("unexpected amount %s", payload.Amount)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
}

func TestEventRegistryTopicRouting(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := []struct {
		eventType enums.OutboxEventType
		aggregate enums.OutboxAggregateType
		topic     string
	}{
		{enums.EventDeliveryStatusChanged, enums.AggregateDelivery, "deliveries-topic"},
		{enums.EventPayoutRequested, enums.AggregatePayoutRequest, "earnings-topic"},
		{enums.EventNotificationRequested, enums.AggregatePayoutRequest, "notification-topic"},
		{enums.EventNotificationRequested, enums.AggregateDelivery, "notification-topic"},
		{enums.EventWebhookFailed, enums.AggregateWebhook, "alerts-topic"},
		{enums.EventLedgerDriftDetected, enums.AggregateAccount, "alerts-topic"},
	}
	for _, tc := range cases {
		event := models.OutboxEvent{
			EventType:     tc.eventType,
			AggregateType: tc.aggregate,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		}
		resolved, err := reg.Resolve(event)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.eventType, err)
		}
		if resolved.Descriptor.Topic != tc.topic {
			t.Fatalf("%s: expected topic %q got %q", tc.eventType, tc.topic, resolved.Descriptor.Topic)
		}
	}
	if got := len(reg.Topics()); got != 4 {
		t.Fatalf("expected 4 topics, got %d", got)
	}
}

func TestEventRegistryResolveUnknownEvent(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.OutboxEventType("loyalty_points_awarded"),
		AggregateType: enums.AggregateDelivery,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte(`{"reason":"none"}`)),
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func TestEventRegistryResolveAggregateMismatch(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventDeliveryCreated,
		AggregateType: enums.AggregatePayoutRequest,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte(`{"delivery_id":"00000000-0000-0000-0000-000000000000"}`)),
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func TestEventRegistryResolveMissingAggregateID(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventDeliveryCreated,
		AggregateType: enums.AggregateDelivery,
		AggregateID:   uuid.Nil,
		Payload:       mustEnvelope(t, []byte(`{}`)),
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func TestEventRegistryResolveNullPayload(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventDeliveryCreated,
		AggregateType: enums.AggregateDelivery,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte("null")),
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{DeliveriesTopic: "d"}); err == nil {
		t.Fatalf("expected error for missing topics")
	}
}

func assertNonRetryable(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %T", err)
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	cfg := config.PubSubConfig{
		DeliveriesTopic:   "deliveries-topic",
		EarningsTopic:     "earnings-topic",
		NotificationTopic: "notification-topic",
		AlertsTopic:       "alerts-topic",
	}
	reg, err := NewEventRegistry(cfg)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
