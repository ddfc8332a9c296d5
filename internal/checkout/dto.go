package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/checkout/helpers"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
)

// CartLine is one product rung up at the till. Price and tax rate come from
// the product record.
type CartLine = helpers.CartLine

// CheckoutInput captures a till sale. A nil ClientID sells to the tenant's
// walk-in client.
type CheckoutInput struct {
	TenantID              uuid.UUID
	ClientID              *uuid.UUID
	Lines                 []CartLine
	GlobalDiscountPercent decimal.Decimal
	Method                enums.PaymentMethod
}

// CheckoutResult is everything a completed sale wrote.
type CheckoutResult struct {
	SessionID uuid.UUID              `json:"checkout_id"`
	Status    enums.CheckoutStatus   `json:"status"`
	Client    *models.Client         `json:"client"`
	Invoice   *models.Document       `json:"invoice"`
	Payment   *models.Payment        `json:"payment,omitempty"`
	Movements []models.StockMovement `json:"stock_movements"`
	Points    *models.PointsMovement `json:"points,omitempty"`
}
