package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
)

// DocumentCreatedEvent announces a newly numbered quote, invoice or credit note.
type DocumentCreatedEvent struct {
	DocumentID uuid.UUID            `json:"document_id"`
	TenantID   uuid.UUID            `json:"tenant_id"`
	ClientID   uuid.UUID            `json:"client_id"`
	Type       enums.DocumentType   `json:"type"`
	Status     enums.DocumentStatus `json:"status"`
	Number     string               `json:"number"`
	Total      decimal.Decimal      `json:"total"`
	SourceID   *uuid.UUID           `json:"source_id,omitempty"`
	CheckoutID *uuid.UUID           `json:"checkout_id,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// PaymentReceivedEvent is emitted once a payment row commits.
type PaymentReceivedEvent struct {
	PaymentID    uuid.UUID           `json:"payment_id"`
	DocumentID   uuid.UUID           `json:"document_id"`
	TenantID     uuid.UUID           `json:"tenant_id"`
	Amount       decimal.Decimal     `json:"amount"`
	Method       enums.PaymentMethod `json:"method"`
	RemainingDue decimal.Decimal     `json:"remaining_due"`
	ReceivedAt   time.Time           `json:"received_at"`
}

// PointsExpiringSoonEvent reminds a client that an EARN grant is about to lapse.
type PointsExpiringSoonEvent struct {
	MovementID uuid.UUID `json:"movement_id"`
	ClientID   uuid.UUID `json:"client_id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Points     int64     `json:"points"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// CheckoutCompensatedEvent reports a POS checkout that was rolled back by
// compensating writes.
type CheckoutCompensatedEvent struct {
	CheckoutID   uuid.UUID          `json:"checkout_id"`
	TenantID     uuid.UUID          `json:"tenant_id"`
	InvoiceID    *uuid.UUID         `json:"invoice_id,omitempty"`
	CreditNoteID *uuid.UUID         `json:"credit_note_id,omitempty"`
	FailedStep   enums.CheckoutStep `json:"failed_step"`
	Reason       string             `json:"reason"`
	Complete     bool               `json:"complete"`
}
