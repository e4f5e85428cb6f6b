// Package validate holds the per-field validation rules for order drafts.
// Every validator takes raw field text and returns either a user-facing
// message or NoError. The "dormant until touched" gate is not applied here;
// the draft controllers decide when a field's result is surfaced.
package validate

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mealtime/api/internal/enum"
)

// NoError is the explicit "field is fine" sentinel. It is a single blank so
// callers can distinguish a validated-and-clean field from one that was
// never validated at all (empty string).
const NoError = " "

// IsError reports whether msg is an actual validation failure.
func IsError(msg string) bool {
	return strings.TrimSpace(msg) != ""
}

// Name validates a position's orderer display name.
func Name(s string) string {
	if s == "" {
		return "name is required"
	}
	return NoError
}

// Meal validates a position's dish description.
func Meal(s string) string {
	if s == "" {
		return "meal is required"
	}
	return NoError
}

// Price requires a parseable amount strictly greater than zero.
func Price(s string) string {
	d, err := decimal.NewFromString(s)
	if err != nil || d.LessThanOrEqual(decimal.Zero) {
		return "price must be a positive amount"
	}
	return NoError
}

// Paid validates the paid amount against the current price. An empty value
// is acceptable only while drafting a new position (required=false); editing
// an existing position always validates the field. The lower bound is only
// checked when price itself parses; price carries its own error otherwise.
func Paid(paid, price string, required bool) string {
	if paid == "" && !required {
		return NoError
	}
	d, err := decimal.NewFromString(paid)
	if err != nil {
		return "paid is not a valid amount"
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return NoError
	}
	if d.LessThan(p) {
		return "paid is less than the price"
	}
	return NoError
}

// Tip validates the tip against the current paid and price values. A tip is
// inadmissible until a parseable paid amount is present, so it cannot be
// entered ahead of the payment it comes out of.
func Tip(tip, paid, price string) string {
	if tip == "" {
		return NoError
	}
	d, err := decimal.NewFromString(tip)
	if err != nil || d.IsNegative() {
		return "tip is not a valid amount"
	}
	pd, err := decimal.NewFromString(paid)
	if err != nil {
		return "tip requires a paid amount"
	}
	pr, err := decimal.NewFromString(price)
	if err != nil {
		return NoError
	}
	if d.GreaterThan(pd.Sub(pr)) {
		return "tip exceeds the change"
	}
	return NoError
}

// Orderer validates the order-level "who orders" field.
func Orderer(s string) string {
	if s == "" {
		return "orderer is required"
	}
	return NoError
}

// Fetcher validates the order-level "who fetches" field.
func Fetcher(s string) string {
	if s == "" {
		return "fetcher is required"
	}
	return NoError
}

// MoneyCollector validates the order-level "money goes to" field.
func MoneyCollector(s string) string {
	if s == "" {
		return "money collector is required"
	}
	return NoError
}

// ClosingTime requires a structurally valid time of day ("HH:MM" or
// "HH:MM:SS").
func ClosingTime(s string) string {
	if _, err := time.Parse("15:04:05", s); err == nil {
		return NoError
	}
	if _, err := time.Parse("15:04", s); err == nil {
		return NoError
	}
	return "closing time is not a valid time of day"
}

// MaximumMealCount is valid when empty, or when it parses to an integer
// greater than 1 that the current position count still fits under.
func MaximumMealCount(s string, positionCount int) string {
	if s == "" {
		return NoError
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return "meal limit is not a number"
	}
	if n <= 1 {
		return "meal limit must be greater than 1"
	}
	if positionCount > n {
		return "meal limit is below the current number of meals"
	}
	return NoError
}

// LooksLikePayPal reports whether the collector value mentions PayPal in any
// casing. Editors use this to force the collection type over to PAYPAL.
func LooksLikePayPal(collector string) bool {
	return strings.Contains(strings.ToLower(collector), "paypal")
}

// PayPalLink derives a clickable link for a PayPal collector: the raw value
// when it already carries an http prefix, otherwise prefixed with http://.
// Returns "" when no link applies.
func PayPalLink(collectionType, collector string) string {
	if collectionType != enum.MoneyCollectionPayPal || collector == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(collector), "http") {
		return collector
	}
	return "http://" + collector
}
