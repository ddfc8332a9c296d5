package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client is a tenant's customer. PointsBalance caches the loyalty ledger.
type Client struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID      uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name          string    `gorm:"column:name;not null"`
	Email         *string   `gorm:"column:email"`
	IsWalkIn      bool      `gorm:"column:is_walk_in;not null;default:false"`
	PointsBalance int64     `gorm:"column:points_balance;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Client) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
