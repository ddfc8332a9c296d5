package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
)

// Tenant is a merchant account. Blank numbering fields fall back to the
// service-wide defaults.
type Tenant struct {
	ID                   uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name                 string          `gorm:"column:name;not null"`
	QuotePrefix          string          `gorm:"column:quote_prefix;not null;default:''"`
	InvoicePrefix        string          `gorm:"column:invoice_prefix;not null;default:''"`
	CreditNotePrefix     string          `gorm:"column:credit_note_prefix;not null;default:''"`
	SequenceStart        int64           `gorm:"column:sequence_start;not null;default:0"`
	NumberPadding        int             `gorm:"column:number_padding;not null;default:0"`
	LoyaltyPointsPerUnit decimal.Decimal `gorm:"column:loyalty_points_per_unit;type:numeric(10,4);not null;default:0"`
	LoyaltyExpiryDays    int             `gorm:"column:loyalty_expiry_days;not null;default:0"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *Tenant) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// PrefixFor returns the tenant-specific prefix configured for docType.
func (t Tenant) PrefixFor(docType enums.DocumentType) string {
	switch docType {
	case enums.DocumentTypeQuote:
		return t.QuotePrefix
	case enums.DocumentTypeInvoice:
		return t.InvoicePrefix
	case enums.DocumentTypeCreditNote:
		return t.CreditNotePrefix
	default:
		return ""
	}
}
