// Package permission maps the order lifecycle onto the set of edits allowed
// for a position. The capability rules live here and nowhere else; editors
// and handlers consult this matrix instead of re-checking states inline.
package permission

import "github.com/mealtime/api/internal/enum"

// Capabilities is the edit/delete capability set for one position in the
// context of its order.
type Capabilities struct {
	// CanCreate allows adding a new position (state permits it and the
	// maximum meal cap, if set, is not reached).
	CanCreate bool

	// CanFullyEdit allows mutating name, meal and price.
	CanFullyEdit bool

	// CanPartiallyEdit allows mutating the payment fields (paid, tip).
	CanPartiallyEdit bool

	// CanDelete allows removing the position from the order.
	CanDelete bool
}

// Query describes the position whose capabilities are requested.
type Query struct {
	State            string // current order lifecycle state
	IsNew            bool   // true while drafting a position that does not exist yet
	IsFullyPaid      bool   // price + tip <= paid; freezes the position
	PositionCount    int    // positions currently on the order
	MaximumMealCount *int   // nil = no cap
}

// For computes the capability set for q.
//
// Name/meal/price are mutable only in NEW and OPEN. Payment fields stay
// writable through LOCKED and ORDERED until the position is fully paid;
// a fully paid position is immutable regardless of state. Deleting is only
// possible while the order has not progressed past OPEN.
func For(q Query) Capabilities {
	editable := q.State == enum.OrderStateNew || q.State == enum.OrderStateOpen
	paymentOnly := q.State == enum.OrderStateLocked || q.State == enum.OrderStateOrdered

	canCreate := editable && (q.MaximumMealCount == nil || q.PositionCount < *q.MaximumMealCount)
	canFullyEdit := editable && ((q.IsNew && canCreate) || !q.IsNew)
	canPartiallyEdit := canFullyEdit || (!q.IsNew && paymentOnly && !q.IsFullyPaid)

	return Capabilities{
		CanCreate:        canCreate,
		CanFullyEdit:     canFullyEdit,
		CanPartiallyEdit: canPartiallyEdit,
		CanDelete:        editable,
	}
}
