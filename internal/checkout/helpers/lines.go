package helpers

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
)

// CartLine is one product rung up at the till.
type CartLine struct {
	ProductID       uuid.UUID       `json:"product_id" validate:"required"`
	Quantity        decimal.Decimal `json:"quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// ValidateCartLines rejects empty carts and lines without a product or with a
// non-positive quantity.
func ValidateCartLines(lines []CartLine) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	for i, line := range lines {
		if line.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is required").
				WithDetails(map[string]any{"line": i + 1})
		}
		if !line.Quantity.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"line": i + 1, "quantity": line.Quantity.String()})
		}
		if !line.Quantity.Equal(line.Quantity.Truncate(3)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity supports at most 3 decimals").
				WithDetails(map[string]any{"line": i + 1, "quantity": line.Quantity.String()})
		}
	}
	return nil
}

// DemandByProduct sums quantities per product. The returned ids keep the
// order in which products first appear in the cart.
func DemandByProduct(lines []CartLine) (map[uuid.UUID]decimal.Decimal, []uuid.UUID) {
	demand := make(map[uuid.UUID]decimal.Decimal, len(lines))
	order := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		current, seen := demand[line.ProductID]
		if !seen {
			order = append(order, line.ProductID)
		}
		demand[line.ProductID] = current.Add(line.Quantity)
	}
	return demand, order
}
