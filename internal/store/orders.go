package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Order is one row of the orders table.
type Order struct {
	ID                  uuid.UUID
	RestaurantID        uuid.UUID
	Version             uuid.UUID
	State               string
	Orderer             pgtype.Text
	Fetcher             pgtype.Text
	MoneyCollectionType pgtype.Text
	MoneyCollector      pgtype.Text
	OrderClosingTime    pgtype.Text
	OrderText           pgtype.Text
	MaximumMealCount    pgtype.Int4
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

const orderColumns = `id, restaurant_id, version, state, orderer, fetcher,
	money_collection_type, money_collector, order_closing_time, order_text,
	maximum_meal_count, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.RestaurantID, &o.Version, &o.State, &o.Orderer, &o.Fetcher,
		&o.MoneyCollectionType, &o.MoneyCollector, &o.OrderClosingTime,
		&o.OrderText, &o.MaximumMealCount, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// CreateOrderParams holds the initial order row values.
type CreateOrderParams struct {
	RestaurantID uuid.UUID
	State        string
}

const createOrder = `
INSERT INTO orders (id, restaurant_id, version, state)
VALUES (gen_random_uuid(), $1, gen_random_uuid(), $2)
RETURNING ` + orderColumns

// CreateOrder inserts a fresh order and returns the full row.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder, arg.RestaurantID, arg.State))
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

// GetOrder fetches one order row; pgx.ErrNoRows when absent.
func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const listOrders = `SELECT ` + orderColumns + ` FROM orders
WHERE $1::text = '' OR state = $1
ORDER BY created_at DESC`

// ListOrders returns all orders, optionally filtered by state.
func (q *Queries) ListOrders(ctx context.Context, state string) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, state)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateOrderInfosParams replaces the metadata columns of an order. Every
// info update regenerates the aggregate version.
type UpdateOrderInfosParams struct {
	ID                  uuid.UUID
	Orderer             pgtype.Text
	Fetcher             pgtype.Text
	MoneyCollectionType pgtype.Text
	MoneyCollector      pgtype.Text
	OrderClosingTime    pgtype.Text
	OrderText           pgtype.Text
	MaximumMealCount    pgtype.Int4
}

const updateOrderInfos = `
UPDATE orders SET
	orderer = $2, fetcher = $3, money_collection_type = $4,
	money_collector = $5, order_closing_time = $6, order_text = $7,
	maximum_meal_count = $8,
	version = gen_random_uuid(), updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

// UpdateOrderInfos writes the full info set and returns the new row.
func (q *Queries) UpdateOrderInfos(ctx context.Context, arg UpdateOrderInfosParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderInfos,
		arg.ID, arg.Orderer, arg.Fetcher, arg.MoneyCollectionType,
		arg.MoneyCollector, arg.OrderClosingTime, arg.OrderText,
		arg.MaximumMealCount))
}

// UpdateOrderStateParams moves an order to a new lifecycle state.
type UpdateOrderStateParams struct {
	ID    uuid.UUID
	State string
}

const updateOrderState = `
UPDATE orders SET state = $2, version = gen_random_uuid(), updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

// UpdateOrderState writes the new state and returns the new row.
func (q *Queries) UpdateOrderState(ctx context.Context, arg UpdateOrderStateParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderState, arg.ID, arg.State))
}

const bumpOrderVersion = `
UPDATE orders SET version = gen_random_uuid(), updated_at = now()
WHERE id = $1`

// BumpOrderVersion regenerates the aggregate version after a position
// mutation.
func (q *Queries) BumpOrderVersion(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, bumpOrderVersion, id)
	return err
}

const deleteOrder = `DELETE FROM orders WHERE id = $1`

// DeleteOrder removes the order row; positions cascade.
func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrder, id)
	return err
}
