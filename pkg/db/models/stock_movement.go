package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
)

// StockMovement is an immutable stock ledger row:
// StockAfter = StockBefore + QuantityDelta.
type StockMovement struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	TenantID      uuid.UUID               `gorm:"column:tenant_id;type:uuid;not null"`
	ProductID     uuid.UUID               `gorm:"column:product_id;type:uuid;not null;index:idx_stock_movements_product_created,priority:1"`
	Type          enums.StockMovementType `gorm:"column:type;type:text;not null"`
	QuantityDelta decimal.Decimal         `gorm:"column:quantity_delta;type:numeric(14,3);not null"`
	StockBefore   decimal.Decimal         `gorm:"column:stock_before;type:numeric(14,3);not null"`
	StockAfter    decimal.Decimal         `gorm:"column:stock_after;type:numeric(14,3);not null"`
	Reason        string                  `gorm:"column:reason;not null;default:''"`
	ReferenceID   *uuid.UUID              `gorm:"column:reference_id;type:uuid"`
	CreatedAt     time.Time               `gorm:"column:created_at;not null;index:idx_stock_movements_product_created,priority:2"`
}

func (StockMovement) TableName() string {
	return "stock_movements"
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
