// Package registry routes outbox rows to Pub/Sub topics and decodes their
// typed payloads before anything leaves the process.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/config"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/outbox"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/outbox/payloads"
)

// EventDescriptor is the route of one event type.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(json.RawMessage) (any, uuid.UUID, error)
}

// ResolvedEvent is a validated outbox row with its decoded payload.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.Envelope
	Payload    any
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps err so the publisher dead-letters instead of retrying.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

var errAggregateMismatch = errors.New("payload does not belong to aggregate")

// route builds a descriptor whose payload decodes into T. idOf returns the
// aggregate the payload describes so it can be checked against the row.
func route[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string, idOf func(*T) uuid.UUID) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(raw json.RawMessage) (any, uuid.UUID, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, uuid.Nil, err
			}
			return payload, idOf(payload), nil
		},
	}
}

// EventRegistry maps each supported event type to its route.
type EventRegistry struct {
	routes map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry sends ledger facts to the ledger topic and client-facing
// reminders to the notification topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.LedgerTopic == "" {
		return nil, fmt.Errorf("ledger topic is required")
	}
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}

	routes := []EventDescriptor{
		route(enums.EventDocumentCreated, enums.AggregateDocument, cfg.LedgerTopic,
			func(p *payloads.DocumentCreatedEvent) uuid.UUID { return p.DocumentID }),
		route(enums.EventPaymentReceived, enums.AggregatePayment, cfg.LedgerTopic,
			func(p *payloads.PaymentReceivedEvent) uuid.UUID { return p.PaymentID }),
		route(enums.EventCheckoutCompensated, enums.AggregateCheckout, cfg.LedgerTopic,
			func(p *payloads.CheckoutCompensatedEvent) uuid.UUID { return p.CheckoutID }),
		route(enums.EventPointsExpiringSoon, enums.AggregatePointsMovement, cfg.NotificationTopic,
			func(p *payloads.PointsExpiringSoonEvent) uuid.UUID { return p.MovementID }),
	}
	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]EventDescriptor, len(routes))}
	for _, desc := range routes {
		reg.routes[desc.EventType] = desc
	}
	return reg, nil
}

// Topics lists the distinct topics the registry routes to, sorted.
func (r *EventRegistry) Topics() []string {
	topics := make([]string, 0, len(r.routes))
	for desc := range maps.Values(r.routes) {
		topics = append(topics, desc.Topic)
	}
	slices.Sort(topics)
	return slices.Compact(topics)
}

// Resolve validates the row and decodes its typed payload. Every failure is
// non-retryable: the row content will not change between attempts.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.routeFor(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload, id, err := desc.decode(envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	if id != event.AggregateID {
		return nil, NewNonRetryableError(fmt.Errorf("%s %s: %w %s", event.EventType, id, errAggregateMismatch, event.AggregateID))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func (r *EventRegistry) routeFor(event models.OutboxEvent) (EventDescriptor, error) {
	desc, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return EventDescriptor{}, fmt.Errorf("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return EventDescriptor{}, fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return EventDescriptor{}, fmt.Errorf("missing aggregate_id")
	}
	return desc, nil
}
