// Package money holds the payment reconciliation arithmetic for order
// positions. All amounts are exact decimals with two minor units; binary
// floating point never enters these computations.
package money

import "github.com/shopspring/decimal"

// IsPaid reports whether a position is fully settled:
// price + (tip or 0) <= (paid or 0).
func IsPaid(price decimal.Decimal, paid, tip *decimal.Decimal) bool {
	owed := price
	if tip != nil {
		owed = owed.Add(*tip)
	}
	have := decimal.Zero
	if paid != nil {
		have = *paid
	}
	return owed.LessThanOrEqual(have)
}

// Change returns paid - price - tip for a settled position, or nil while the
// position is not yet fully paid. nil is distinct from a zero change.
func Change(price decimal.Decimal, paid, tip *decimal.Decimal) *decimal.Decimal {
	if !IsPaid(price, paid, tip) {
		return nil
	}
	c := decimal.Zero
	if paid != nil {
		c = *paid
	}
	c = c.Sub(price)
	if tip != nil {
		c = c.Sub(*tip)
	}
	return &c
}
