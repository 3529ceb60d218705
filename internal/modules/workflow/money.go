package workflow

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
)

var (
	hundred    = decimal.NewFromInt(100)
	maxTaxRate = hundred
)

// Totals is the priced result of a set of line items.
type Totals struct {
	Items     []LineItem
	Subtotal  decimal.Decimal
	TaxRate   decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ValidateItems rejects empty item lists, blank descriptions, non-positive
// quantities or prices, and tax rates outside [0,100] or finer than the
// stored two decimal places.
func ValidateItems(items []LineItem, taxRate decimal.Decimal) error {
	if len(items) == 0 {
		return apperror.Field("items", "at least one line item is required")
	}
	for i, it := range items {
		if strings.TrimSpace(it.Description) == "" {
			return apperror.Field(fmt.Sprintf("items[%d].description", i), "must not be empty")
		}
		if !it.Quantity.IsPositive() {
			return apperror.Field(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero")
		}
		if !it.UnitPrice.IsPositive() {
			return apperror.Field(fmt.Sprintf("items[%d].unit_price", i), "must be greater than zero")
		}
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(maxTaxRate) {
		return apperror.Field("tax_rate", "must be between 0 and 100")
	}
	if !taxRate.Equal(Round2(taxRate)) {
		return apperror.Field("tax_rate", "at most two decimal places")
	}
	return nil
}

// ComputeTotals prices items. Line totals are recomputed from quantity and
// unit price; any client-supplied line total is ignored.
func ComputeTotals(items []LineItem, taxRate decimal.Decimal) Totals {
	priced := make([]LineItem, len(items))
	subtotal := decimal.Zero
	for i, it := range items {
		it.Description = strings.TrimSpace(it.Description)
		it.LineTotal = Round2(it.Quantity.Mul(it.UnitPrice))
		subtotal = subtotal.Add(it.LineTotal)
		priced[i] = it
	}
	tax := Round2(subtotal.Mul(taxRate).Div(hundred))
	return Totals{
		Items:     priced,
		Subtotal:  subtotal,
		TaxRate:   taxRate,
		TaxAmount: tax,
		Total:     subtotal.Add(tax),
	}
}

// PriceItems validates and prices items.
func PriceItems(items []LineItem, taxRate decimal.Decimal) (Totals, error) {
	if err := ValidateItems(items, taxRate); err != nil {
		return Totals{}, err
	}
	return ComputeTotals(items, taxRate), nil
}
