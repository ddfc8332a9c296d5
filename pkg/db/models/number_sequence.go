package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
)

// NumberSequence is the per-tenant, per-document-type counter. NextValue is the
// value the next allocation will hand out.
type NumberSequence struct {
	TenantID     uuid.UUID          `gorm:"column:tenant_id;type:uuid;primaryKey"`
	DocumentType enums.DocumentType `gorm:"column:document_type;type:text;primaryKey"`
	Prefix       string             `gorm:"column:prefix;not null"`
	Padding      int                `gorm:"column:padding;not null"`
	NextValue    int64              `gorm:"column:next_value;not null"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
