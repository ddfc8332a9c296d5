// Package money holds the fixed-point pricing rules shared by documents and
// the POS checkout. Every amount is a decimal; nothing goes through float64.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimals kept on every monetary intermediate.
const Scale int32 = 2

var (
	hundred = decimal.NewFromInt(100)

	ErrNonPositiveQuantity = errors.New("quantity must be greater than zero")
	ErrNegativePrice       = errors.New("unit price cannot be negative")
	ErrPercentOutOfRange   = errors.New("percentage must be between 0 and 100")
	ErrNoLines             = errors.New("at least one line is required")
)

// Round rounds an amount to Scale decimals, half away from zero.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Scale)
}

// ApplyDiscount returns amount reduced by percent, rounded.
func ApplyDiscount(amount, percent decimal.Decimal) decimal.Decimal {
	if percent.IsZero() {
		return Round(amount)
	}
	factor := hundred.Sub(percent).Div(hundred)
	return Round(amount.Mul(factor))
}

// Percentage returns percent of amount, rounded.
func Percentage(amount, percent decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(percent).Div(hundred))
}

// ValidPercent reports whether p lies in [0, 100].
func ValidPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}

// Line is the pricing input for one document or cart row. Percentages are
// expressed as 0-100.
type Line struct {
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	TaxRate         decimal.Decimal
	DiscountPercent decimal.Decimal
}

// LineAmounts is the priced result of one Line.
type LineAmounts struct {
	HT  decimal.Decimal
	TVA decimal.Decimal
	TTC decimal.Decimal
}

// Totals aggregates priced lines.
type Totals struct {
	Lines  []LineAmounts
	PreTax decimal.Decimal
	Tax    decimal.Decimal
	Total  decimal.Decimal
}

// Validate checks a single line before pricing.
func (l Line) Validate() error {
	if !l.Quantity.IsPositive() {
		return ErrNonPositiveQuantity
	}
	if l.UnitPrice.IsNegative() {
		return ErrNegativePrice
	}
	if !ValidPercent(l.DiscountPercent) || !ValidPercent(l.TaxRate) {
		return ErrPercentOutOfRange
	}
	return nil
}

// PriceLine applies, in order, the line discount, the global discount and the
// tax rate. Each intermediate is rounded to two decimals.
func PriceLine(l Line, globalDiscount decimal.Decimal) LineAmounts {
	gross := l.Quantity.Mul(l.UnitPrice)
	afterLine := ApplyDiscount(gross, l.DiscountPercent)
	ht := ApplyDiscount(afterLine, globalDiscount)
	tva := Percentage(ht, l.TaxRate)
	return LineAmounts{HT: ht, TVA: tva, TTC: ht.Add(tva)}
}

// PriceLines validates and prices every line, then sums the rounded line
// amounts without re-rounding.
func PriceLines(lines []Line, globalDiscount decimal.Decimal) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, ErrNoLines
	}
	if !ValidPercent(globalDiscount) {
		return Totals{}, fmt.Errorf("global discount: %w", ErrPercentOutOfRange)
	}
	totals := Totals{
		Lines:  make([]LineAmounts, 0, len(lines)),
		PreTax: decimal.Zero,
		Tax:    decimal.Zero,
	}
	for i, line := range lines {
		if err := line.Validate(); err != nil {
			return Totals{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		amounts := PriceLine(line, globalDiscount)
		totals.Lines = append(totals.Lines, amounts)
		totals.PreTax = totals.PreTax.Add(amounts.HT)
		totals.Tax = totals.Tax.Add(amounts.TVA)
	}
	totals.Total = totals.PreTax.Add(totals.Tax)
	return totals, nil
}
