package enums

import "slices"

// PaymentStatus tracks whether a recorded payment still stands.
type PaymentStatus string

const (
	PaymentStatusReceived PaymentStatus = "received"
	PaymentStatusRefunded PaymentStatus = "refunded"
	// PaymentStatusRefund marks the compensating row written for a refund.
	PaymentStatusRefund PaymentStatus = "refund"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusReceived,
	PaymentStatusRefunded,
	PaymentStatusRefund,
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	return slices.Contains(validPaymentStatuses, p)
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse(validPaymentStatuses, value, "payment status")
}
