package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
)

// Document is a quote, invoice or credit note. Totals are frozen at creation:
// Total = PreTax + Tax and 0 <= RemainingDue <= Total.
type Document struct {
	ID                    uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	TenantID              uuid.UUID            `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:idx_documents_number,priority:1"`
	Type                  enums.DocumentType   `gorm:"column:type;type:text;not null;uniqueIndex:idx_documents_number,priority:2"`
	Number                string               `gorm:"column:number;not null;uniqueIndex:idx_documents_number,priority:3"`
	Status                enums.DocumentStatus `gorm:"column:status;type:text;not null"`
	ClientID              uuid.UUID            `gorm:"column:client_id;type:uuid;not null;index"`
	GlobalDiscountPercent decimal.Decimal      `gorm:"column:global_discount_percent;type:numeric(5,2);not null;default:0"`
	PreTax                decimal.Decimal      `gorm:"column:pre_tax;type:numeric(14,2);not null"`
	Tax                   decimal.Decimal      `gorm:"column:tax;type:numeric(14,2);not null"`
	Total                 decimal.Decimal      `gorm:"column:total;type:numeric(14,2);not null"`
	RemainingDue          decimal.Decimal      `gorm:"column:remaining_due;type:numeric(14,2);not null"`
	LinkedQuoteID         *uuid.UUID           `gorm:"column:linked_quote_id;type:uuid;uniqueIndex:idx_documents_linked_quote"`
	LinkedDocumentID      *uuid.UUID           `gorm:"column:linked_document_id;type:uuid;index"`
	Notes                 *string              `gorm:"column:notes"`
	IssuedAt              time.Time            `gorm:"column:issued_at;not null"`
	CreatedAt             time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time            `gorm:"column:updated_at;autoUpdateTime"`

	Lines []DocumentLine `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

func (d *Document) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DocumentLine is one priced row. The Line* amounts are rounded to two
// decimals and summed as-is into the document totals.
type DocumentLine struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	DocumentID      uuid.UUID       `gorm:"column:document_id;type:uuid;not null;index"`
	Position        int             `gorm:"column:position;not null"`
	ProductID       *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	Label           string          `gorm:"column:label;not null"`
	Quantity        decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null"`
	TaxRate         decimal.Decimal `gorm:"column:tax_rate;type:numeric(5,2);not null"`
	DiscountPercent decimal.Decimal `gorm:"column:discount_percent;type:numeric(5,2);not null;default:0"`
	LineHT          decimal.Decimal `gorm:"column:line_ht;type:numeric(14,2);not null"`
	LineTVA         decimal.Decimal `gorm:"column:line_tva;type:numeric(14,2);not null"`
	LineTTC         decimal.Decimal `gorm:"column:line_ttc;type:numeric(14,2);not null"`
}

func (l *DocumentLine) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
