package enum

// ── Order lifecycle (owned by the backend order service) ──

const (
	OrderStateNew       = "NEW"
	OrderStateOpen      = "OPEN"
	OrderStateLocked    = "LOCKED"
	OrderStateOrdered   = "ORDERED"
	OrderStateDelivered = "DELIVERED"
	OrderStateArchived  = "ARCHIVED"
	OrderStateRevoked   = "REVOKED"
)

// ── Money collection ──

const (
	MoneyCollectionCash   = "CASH"
	MoneyCollectionPayPal = "PAYPAL"
)

// IsValidOrderState reports whether s is a known lifecycle state.
func IsValidOrderState(s string) bool {
	switch s {
	case OrderStateNew, OrderStateOpen, OrderStateLocked, OrderStateOrdered,
		OrderStateDelivered, OrderStateArchived, OrderStateRevoked:
		return true
	}
	return false
}

// IsValidMoneyCollection reports whether s is a known money collection type.
func IsValidMoneyCollection(s string) bool {
	switch s {
	case MoneyCollectionCash, MoneyCollectionPayPal:
		return true
	}
	return false
}
