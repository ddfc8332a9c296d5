package enums

import "slices"

// OutboxAggregateType names the aggregate an outbox row describes.
type OutboxAggregateType string

const (
	AggregateDocument       OutboxAggregateType = "document"
	AggregatePayment        OutboxAggregateType = "payment"
	AggregatePointsMovement OutboxAggregateType = "points_movement"
	AggregateCheckout       OutboxAggregateType = "checkout"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateDocument,
	AggregatePayment,
	AggregatePointsMovement,
	AggregateCheckout,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(validAggregateTypes, value, "aggregate type")
}

// OutboxEventType names the notification carried by an outbox row.
type OutboxEventType string

const (
	EventDocumentCreated     OutboxEventType = "document_created"
	EventPaymentReceived     OutboxEventType = "payment_received"
	EventPointsExpiringSoon  OutboxEventType = "points_expiring_soon"
	EventCheckoutCompensated OutboxEventType = "checkout_compensated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventDocumentCreated,
	EventPaymentReceived,
	EventPointsExpiringSoon,
	EventCheckoutCompensated,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(validOutboxEventTypes, value, "event type")
}
