package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product carries the catalog price and the cached stock level.
// CurrentStock always equals InitialStock plus the sum of its movement deltas.
type Product struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TenantID     uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	SKU          string          `gorm:"column:sku;not null"`
	Name         string          `gorm:"column:name;not null"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null"`
	TaxRate      decimal.Decimal `gorm:"column:tax_rate;type:numeric(5,2);not null"`
	StockTracked bool            `gorm:"column:stock_tracked;not null"`
	InitialStock decimal.Decimal `gorm:"column:initial_stock;type:numeric(14,3);not null;default:0"`
	CurrentStock decimal.Decimal `gorm:"column:current_stock;type:numeric(14,3);not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
