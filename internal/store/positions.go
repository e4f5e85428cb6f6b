package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderPosition is one row of the order_positions table. PositionIndex is
// the stable ordinal assigned at creation.
type OrderPosition struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	PositionIndex int32
	Name          string
	Meal          string
	Price         pgtype.Numeric
	Paid          pgtype.Numeric
	Tip           pgtype.Numeric
}

const positionColumns = `id, order_id, position_index, name, meal, price, paid, tip`

func scanPosition(row interface{ Scan(...any) error }) (OrderPosition, error) {
	var p OrderPosition
	err := row.Scan(&p.ID, &p.OrderID, &p.PositionIndex, &p.Name, &p.Meal,
		&p.Price, &p.Paid, &p.Tip)
	return p, err
}

// CreatePositionParams holds a new position row. The index is assigned in
// the query: one more than the highest index the order has seen, so deleted
// positions never free their ordinal.
type CreatePositionParams struct {
	OrderID uuid.UUID
	Name    string
	Meal    string
	Price   pgtype.Numeric
	Paid    pgtype.Numeric
	Tip     pgtype.Numeric
}

const createPosition = `
INSERT INTO order_positions (id, order_id, position_index, name, meal, price, paid, tip)
VALUES (
	gen_random_uuid(), $1,
	(SELECT COALESCE(MAX(position_index), 0) + 1 FROM order_positions WHERE order_id = $1),
	$2, $3, $4, $5, $6
)
RETURNING ` + positionColumns

// CreatePosition inserts a position and returns the full row.
func (q *Queries) CreatePosition(ctx context.Context, arg CreatePositionParams) (OrderPosition, error) {
	return scanPosition(q.db.QueryRow(ctx, createPosition,
		arg.OrderID, arg.Name, arg.Meal, arg.Price, arg.Paid, arg.Tip))
}

const getPosition = `SELECT ` + positionColumns + `
FROM order_positions WHERE id = $1 AND order_id = $2`

// GetPosition fetches one position scoped to its order.
func (q *Queries) GetPosition(ctx context.Context, id, orderID uuid.UUID) (OrderPosition, error) {
	return scanPosition(q.db.QueryRow(ctx, getPosition, id, orderID))
}

const listPositionsByOrder = `SELECT ` + positionColumns + `
FROM order_positions WHERE order_id = $1 ORDER BY position_index`

// ListPositionsByOrder returns the order's positions in ordinal order.
func (q *Queries) ListPositionsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderPosition, error) {
	rows, err := q.db.Query(ctx, listPositionsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []OrderPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

const countPositionsByOrder = `SELECT COUNT(*) FROM order_positions WHERE order_id = $1`

// CountPositionsByOrder returns the live position count for the meal cap.
func (q *Queries) CountPositionsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countPositionsByOrder, orderID).Scan(&n)
	return n, err
}

// UpdatePositionParams writes the full editable field set of a position.
type UpdatePositionParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
	Name    string
	Meal    string
	Price   pgtype.Numeric
	Paid    pgtype.Numeric
	Tip     pgtype.Numeric
}

const updatePosition = `
UPDATE order_positions SET name = $3, meal = $4, price = $5, paid = $6, tip = $7
WHERE id = $1 AND order_id = $2
RETURNING ` + positionColumns

// UpdatePosition writes the new field values and returns the row.
func (q *Queries) UpdatePosition(ctx context.Context, arg UpdatePositionParams) (OrderPosition, error) {
	return scanPosition(q.db.QueryRow(ctx, updatePosition,
		arg.ID, arg.OrderID, arg.Name, arg.Meal, arg.Price, arg.Paid, arg.Tip))
}

const deletePosition = `DELETE FROM order_positions WHERE id = $1 AND order_id = $2`

// DeletePosition removes the position row.
func (q *Queries) DeletePosition(ctx context.Context, id, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deletePosition, id, orderID)
	return err
}
