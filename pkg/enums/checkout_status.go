package enums

import "slices"

// CheckoutStatus is the outcome recorded on a POS checkout session.
type CheckoutStatus string

const (
	CheckoutStatusPending            CheckoutStatus = "pending"
	CheckoutStatusCompleted          CheckoutStatus = "completed"
	CheckoutStatusRejected           CheckoutStatus = "rejected"
	CheckoutStatusCompensated        CheckoutStatus = "compensated"
	CheckoutStatusCompensationFailed CheckoutStatus = "compensation_failed"
)

var validCheckoutStatuses = []CheckoutStatus{
	CheckoutStatusPending,
	CheckoutStatusCompleted,
	CheckoutStatusRejected,
	CheckoutStatusCompensated,
	CheckoutStatusCompensationFailed,
}

// IsValid reports whether the value is a known CheckoutStatus.
func (c CheckoutStatus) IsValid() bool {
	return slices.Contains(validCheckoutStatuses, c)
}

// ParseCheckoutStatus converts raw input into a CheckoutStatus.
func ParseCheckoutStatus(value string) (CheckoutStatus, error) {
	return parse(validCheckoutStatuses, value, "checkout status")
}

// CheckoutStep names the saga step a checkout reached.
type CheckoutStep string

const (
	CheckoutStepResolveClient CheckoutStep = "resolve_client"
	CheckoutStepPrice         CheckoutStep = "price"
	CheckoutStepStockCheck    CheckoutStep = "stock_check"
	CheckoutStepAllocate      CheckoutStep = "allocate_number"
	CheckoutStepInvoice       CheckoutStep = "create_invoice"
	CheckoutStepPayment       CheckoutStep = "record_payment"
	CheckoutStepStock         CheckoutStep = "stock_out"
	CheckoutStepLoyalty       CheckoutStep = "loyalty_earn"
)
