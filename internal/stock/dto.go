package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/pagination"
)

// RecordMovementInput describes one stock change. Quantity is a positive
// magnitude for IN and OUT, and the signed delta for ADJUST.
type RecordMovementInput struct {
	TenantID    uuid.UUID
	ProductID   uuid.UUID
	Type        enums.StockMovementType
	Quantity    decimal.Decimal
	Reason      string
	ReferenceID *uuid.UUID
}

// MovementFilter narrows a movement listing. A zero filter lists every
// movement newest-first.
type MovementFilter struct {
	Types    []enums.StockMovementType
	Since    *time.Time
	Until    *time.Time
	Order    pagination.Order
	Cursor   string
	PageSize int
}

// MovementPage is one cursor page of movements.
type MovementPage struct {
	Items      []models.StockMovement `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

// Level is the current stock of one product.
type Level struct {
	ProductID uuid.UUID       `json:"product_id"`
	Tracked   bool            `json:"tracked"`
	Available decimal.Decimal `json:"available"`
}

// Shortage is a requested quantity the product cannot cover.
type Shortage struct {
	ProductID uuid.UUID       `json:"product_id"`
	Available decimal.Decimal `json:"available"`
	Requested decimal.Decimal `json:"requested"`
}

// ReconcileReport compares the cached stock with a full ledger replay.
type ReconcileReport struct {
	ProductID   uuid.UUID        `json:"product_id"`
	Movements   int              `json:"movements"`
	Cached      decimal.Decimal  `json:"cached"`
	Replayed    decimal.Decimal  `json:"replayed"`
	LatestAfter *decimal.Decimal `json:"latest_after,omitempty"`
	ChainBroken bool             `json:"chain_broken"`
	Drift       bool             `json:"drift"`
	Repaired    bool             `json:"repaired"`
}
