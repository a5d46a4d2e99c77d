// Package pricing computes order totals. All arithmetic runs on
// shopspring decimals; binary floating point never touches money.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errors returned by Calculate.
var (
	ErrEmptyItems      = errors.New("order must contain at least one item")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
	ErrInvalidPrice    = errors.New("unit price must not be negative")
)

// Spanish storefront rules: orders of 50.00 or more ship free (inclusive
// boundary), everything below pays the flat fee; VAT is 21%.
var (
	FreeShippingThreshold = decimal.RequireFromString("50.00")
	FlatShippingFee       = decimal.RequireFromString("3.80")
	TaxRate               = decimal.RequireFromString("0.21")
)

// LineItem is one priced order line.
type LineItem struct {
	UnitPrice decimal.Decimal
	Quantity  int32
}

// Totals is the breakdown of an order's price.
// Total is always Subtotal + ShippingCost + Tax.
type Totals struct {
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
}

// Calculate computes the totals for the given line items.
func Calculate(items []LineItem) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, ErrEmptyItems
	}

	subtotal := decimal.Zero
	for i, item := range items {
		if item.Quantity <= 0 {
			return Totals{}, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		if item.UnitPrice.IsNegative() {
			return Totals{}, fmt.Errorf("items[%d]: %w", i, ErrInvalidPrice)
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)))
	}

	shipping := FlatShippingFee
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := subtotal.Mul(TaxRate)

	return Totals{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		Total:        subtotal.Add(shipping).Add(tax),
	}, nil
}

// LineSubtotal returns unit price times quantity for a single line.
func LineSubtotal(unitPrice decimal.Decimal, quantity int32) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt32(quantity))
}
