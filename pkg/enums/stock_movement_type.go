package enums

import "slices"

// StockMovementType classifies an entry of the stock ledger.
type StockMovementType string

const (
	StockMovementIn     StockMovementType = "IN"
	StockMovementOut    StockMovementType = "OUT"
	StockMovementAdjust StockMovementType = "ADJUST"
)

var validStockMovementTypes = []StockMovementType{
	StockMovementIn,
	StockMovementOut,
	StockMovementAdjust,
}

// String implements fmt.Stringer.
func (s StockMovementType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockMovementType.
func (s StockMovementType) IsValid() bool {
	return slices.Contains(validStockMovementTypes, s)
}

// ParseStockMovementType converts raw input into a StockMovementType.
func ParseStockMovementType(value string) (StockMovementType, error) {
	return parse(validStockMovementTypes, value, "stock movement type")
}
