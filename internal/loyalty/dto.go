package loyalty

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
)

// ApplyMovementInput describes one points change. Points is always the
// positive magnitude. Debit only applies to ADJUST and makes it subtract.
type ApplyMovementInput struct {
	TenantID         uuid.UUID
	ClientID         uuid.UUID
	Type             enums.PointsMovementType
	Points           int64
	Debit            bool
	ExpiresAt        *time.Time
	SourceMovementID *uuid.UUID
	DocumentID       *uuid.UUID
	Reason           string
}

// EarnInput credits the points a purchase is worth.
type EarnInput struct {
	TenantID   uuid.UUID
	ClientID   uuid.UUID
	Amount     decimal.Decimal
	DocumentID *uuid.UUID
	Reason     string
}

// ExpireSummary reports one ExpireDue pass.
type ExpireSummary struct {
	Expired int   `json:"expired"`
	Points  int64 `json:"points"`
	Skipped int   `json:"skipped"`
}

// ReconcileReport compares a client's cached balance with a ledger replay.
type ReconcileReport struct {
	ClientID    uuid.UUID `json:"client_id"`
	Movements   int       `json:"movements"`
	Cached      int64     `json:"cached"`
	Replayed    int64     `json:"replayed"`
	LatestAfter *int64    `json:"latest_after,omitempty"`
	ChainBroken bool      `json:"chain_broken"`
	Drift       bool      `json:"drift"`
	Repaired    bool      `json:"repaired"`
}
