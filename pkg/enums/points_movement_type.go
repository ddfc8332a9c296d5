package enums

import "slices"

// PointsMovementType classifies an entry of the loyalty points ledger.
type PointsMovementType string

const (
	PointsMovementEarn   PointsMovementType = "EARN"
	PointsMovementSpend  PointsMovementType = "SPEND"
	PointsMovementExpire PointsMovementType = "EXPIRE"
	PointsMovementAdjust PointsMovementType = "ADJUST"
)

var validPointsMovementTypes = []PointsMovementType{
	PointsMovementEarn,
	PointsMovementSpend,
	PointsMovementExpire,
	PointsMovementAdjust,
}

// String implements fmt.Stringer.
func (p PointsMovementType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PointsMovementType.
func (p PointsMovementType) IsValid() bool {
	return slices.Contains(validPointsMovementTypes, p)
}

// ParsePointsMovementType converts raw input into a PointsMovementType.
func ParsePointsMovementType(value string) (PointsMovementType, error) {
	return parse(validPointsMovementTypes, value, "points movement type")
}

// Debits reports whether the movement type always lowers the balance.
func (p PointsMovementType) Debits() bool {
	return p == PointsMovementSpend || p == PointsMovementExpire
}
