package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
)

// PointsMovement is an immutable loyalty ledger row. Points is always the
// positive magnitude; Delta carries the sign applied to the balance.
type PointsMovement struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	TenantID         uuid.UUID                `gorm:"column:tenant_id;type:uuid;not null"`
	ClientID         uuid.UUID                `gorm:"column:client_id;type:uuid;not null;index:idx_points_movements_client_created,priority:1"`
	Type             enums.PointsMovementType `gorm:"column:type;type:text;not null"`
	Points           int64                    `gorm:"column:points;not null"`
	Delta            int64                    `gorm:"column:delta;not null"`
	BalanceAfter     int64                    `gorm:"column:balance_after;not null"`
	ExpiresAt        *time.Time               `gorm:"column:expires_at"`
	SourceMovementID *uuid.UUID               `gorm:"column:source_movement_id;type:uuid;index"`
	DocumentID       *uuid.UUID               `gorm:"column:document_id;type:uuid"`
	Reason           string                   `gorm:"column:reason;not null;default:''"`
	CreatedAt        time.Time                `gorm:"column:created_at;not null;index:idx_points_movements_client_created,priority:2"`
}

func (m *PointsMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
