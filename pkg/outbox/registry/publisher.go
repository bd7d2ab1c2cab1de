package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/packdrop-backend/pkg/config"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

// EventDescriptor links an event type to its aggregates, topic and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateTypes []enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

func (d EventDescriptor) acceptsAggregate(aggregate enums.OutboxAggregateType) bool {
	for _, candidate := range d.AggregateTypes {
		if candidate == aggregate {
			return true
		}
	}
	return false
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func aggregates(types ...enums.OutboxAggregateType) []enums.OutboxAggregateType {
	return types
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.DeliveriesTopic == "" {
		return nil, fmt.Errorf("deliveries topic is required")
	}
	if cfg.EarningsTopic == "" {
		return nil, fmt.Errorf("earnings topic is required")
	}
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}
	if cfg.AlertsTopic == "" {
		return nil, fmt.Errorf("alerts topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	delivery := aggregates(enums.AggregateDelivery)
	payout := aggregates(enums.AggregatePayoutRequest)

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventDeliveryCreated,
			AggregateTypes: delivery,
			PayloadFactory: func() interface{} { return &payloads.DeliveryCreatedEvent{} },
		},
		{
			EventType:      enums.EventDeliveryAssigned,
			AggregateTypes: delivery,
			PayloadFactory: func() interface{} { return &payloads.DeliveryAssignedEvent{} },
		},
		{
			EventType:      enums.EventDeliveryStatusChanged,
			AggregateTypes: delivery,
			PayloadFactory: func() interface{} { return &payloads.DeliveryStatusChangedEvent{} },
		},
	} {
		desc.Topic = cfg.DeliveriesTopic
		reg.register(desc)
	}

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventEarningPosted,
			AggregateTypes: aggregates(enums.AggregateDriverEarning, enums.AggregateOrder),
			PayloadFactory: func() interface{} { return &payloads.EarningPostedEvent{} },
		},
		{
			EventType:      enums.EventPayoutRequested,
			AggregateTypes: payout,
			PayloadFactory: func() interface{} { return &payloads.PayoutEvent{} },
		},
		{
			EventType:      enums.EventPayoutProcessed,
			AggregateTypes: payout,
			PayloadFactory: func() interface{} { return &payloads.PayoutEvent{} },
		},
		{
			EventType:      enums.EventPayoutRejected,
			AggregateTypes: payout,
			PayloadFactory: func() interface{} { return &payloads.PayoutEvent{} },
		},
		{
			EventType:      enums.EventPayoutTransferRequested,
			AggregateTypes: payout,
			PayloadFactory: func() interface{} { return &payloads.PayoutEvent{} },
		},
	} {
		desc.Topic = cfg.EarningsTopic
		reg.register(desc)
	}

	reg.register(EventDescriptor{
		EventType:      enums.EventNotificationRequested,
		AggregateTypes: aggregates(enums.AggregateDelivery, enums.AggregatePayoutRequest, enums.AggregateOrder),
		Topic:          cfg.NotificationTopic,
		PayloadFactory: func() interface{} { return &payloads.NotificationRequestedEvent{} },
	})

	reg.register(EventDescriptor{
		EventType:      enums.EventWebhookFailed,
		AggregateTypes: aggregates(enums.AggregateWebhook),
		Topic:          cfg.AlertsTopic,
		PayloadFactory: func() interface{} { return &payloads.WebhookFailedEvent{} },
	})
	reg.register(EventDescriptor{
		EventType:      enums.EventLedgerDriftDetected,
		AggregateTypes: aggregates(enums.AggregateAccount),
		Topic:          cfg.AlertsTopic,
		PayloadFactory: func() interface{} { return &payloads.LedgerDriftDetectedEvent{} },
	})

	return reg, nil
}

// Topics lists every topic the registry routes to.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	var topics []string
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		topics = append(topics, desc.Topic)
	}
	return topics
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if !desc.acceptsAggregate(event.AggregateType) {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate %s not accepted for %s", event.AggregateType, event.EventType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if payload == nil {
		return nil, NewNonRetryableError(fmt.Errorf("payload factory not configured for %s", event.EventType))
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
