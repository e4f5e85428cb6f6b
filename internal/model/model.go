// Package model defines the order aggregate shared by the server, the HTTP
// client and the editor core. The backend owns every instance; editors only
// ever hold disposable draft copies of the editable fields.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mealtime/api/internal/money"
)

// Order is the aggregate root for one shared meal order.
type Order struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	// Version changes on every mutation of the aggregate. Clients compare it
	// to detect stale snapshots.
	Version   uuid.UUID
	State     string
	Infos     OrderInfos
	Positions []OrderPosition
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderInfos is the order-level metadata maintained by the coordinator.
type OrderInfos struct {
	Orderer             string
	Fetcher             string
	MoneyCollectionType string
	MoneyCollector      string
	// OrderClosingTime is a time of day, "HH:MM:SS".
	OrderClosingTime string
	OrderText        string
	// MaximumMealCount caps the number of positions; nil = unlimited.
	MaximumMealCount *int
}

// OrderPosition is one participant's line item plus its payment state.
type OrderPosition struct {
	ID uuid.UUID
	// Index is the stable ordinal assigned at creation, used for display.
	// It is distinct from the list position.
	Index int
	Name  string
	Meal  string
	Price decimal.Decimal
	Paid  *decimal.Decimal
	Tip   *decimal.Decimal
}

// IsPaid reports whether the position is fully settled.
func (p OrderPosition) IsPaid() bool {
	return money.IsPaid(p.Price, p.Paid, p.Tip)
}

// Change returns the money to hand back, or nil while the position is not
// yet settled.
func (p OrderPosition) Change() *decimal.Decimal {
	return money.Change(p.Price, p.Paid, p.Tip)
}

// OrderInfosPatch is the full info set sent by the metadata editor.
type OrderInfosPatch struct {
	Orderer             string
	Fetcher             string
	MoneyCollectionType string
	MoneyCollector      string
	OrderClosingTime    string
	OrderText           string
	MaximumMealCount    *int
}

// OrderPositionPatch carries position fields for create and update calls.
// Nil pointers mean "leave unchanged" on update and "not provided" on create.
type OrderPositionPatch struct {
	Name  *string
	Meal  *string
	Price *decimal.Decimal
	Paid  *decimal.Decimal
	Tip   *decimal.Decimal
}

// Restaurant is an entry in the restaurant directory orders point at.
type Restaurant struct {
	ID               uuid.UUID
	Version          uuid.UUID
	Name             string
	Style            string
	Kind             string
	Phone            string
	Website          string
	Street           string
	Housenumber      string
	Postal           string
	City             string
	ShortDescription string
	Description      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
