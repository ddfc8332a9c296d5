package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
)

// CheckoutSession is the audit trail of one POS checkout saga.
type CheckoutSession struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	TenantID       uuid.UUID            `gorm:"column:tenant_id;type:uuid;not null;index"`
	Status         enums.CheckoutStatus `gorm:"column:status;type:text;not null"`
	ClientID       *uuid.UUID           `gorm:"column:client_id;type:uuid"`
	InvoiceID      *uuid.UUID           `gorm:"column:invoice_id;type:uuid"`
	PaymentID      *uuid.UUID           `gorm:"column:payment_id;type:uuid"`
	CreditNoteID   *uuid.UUID           `gorm:"column:credit_note_id;type:uuid"`
	CompletedSteps json.RawMessage      `gorm:"column:completed_steps;type:jsonb"`
	FailedStep     *enums.CheckoutStep  `gorm:"column:failed_step;type:text"`
	FailureReason  *string              `gorm:"column:failure_reason"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CheckoutSession) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
