package documents

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/numbering"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
)

// LineInput is one document row as supplied by the caller. The computed
// amounts are never accepted from outside.
type LineInput struct {
	ProductID       *uuid.UUID      `json:"product_id,omitempty"`
	Label           string          `json:"label"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// CreateDocumentInput opens a DRAFT document.
type CreateDocumentInput struct {
	TenantID              uuid.UUID
	Type                  enums.DocumentType
	ClientID              uuid.UUID
	Lines                 []LineInput
	GlobalDiscountPercent decimal.Decimal
	Notes                 *string
}

// TransitionInput moves a document along its lifecycle.
type TransitionInput struct {
	TenantID   uuid.UUID
	DocumentID uuid.UUID
	To         enums.DocumentStatus
}

// IssuePaidInvoiceInput creates an invoice that is settled on the spot.
// Allocation carries a number drawn beforehand; when nil, one is drawn inside
// the invoice transaction.
type IssuePaidInvoiceInput struct {
	TenantID              uuid.UUID
	ClientID              uuid.UUID
	Lines                 []LineInput
	GlobalDiscountPercent decimal.Decimal
	Allocation            *numbering.Allocation
	Notes                 *string
}

// IssueCreditNoteInput cancels the financial effect of an invoice.
type IssueCreditNoteInput struct {
	TenantID  uuid.UUID
	InvoiceID uuid.UUID
	Notes     *string
}

// RecordPaymentInput settles part or all of an open invoice.
type RecordPaymentInput struct {
	TenantID   uuid.UUID
	DocumentID uuid.UUID
	Amount     decimal.Decimal
	Method     enums.PaymentMethod
	ReceivedAt time.Time
}

// AttachPaymentInput books the payment of an invoice issued as already paid.
type AttachPaymentInput struct {
	TenantID   uuid.UUID
	DocumentID uuid.UUID
	Amount     decimal.Decimal
	Method     enums.PaymentMethod
}
