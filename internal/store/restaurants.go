package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Restaurant is one row of the restaurants table.
type Restaurant struct {
	ID               uuid.UUID
	Version          uuid.UUID
	Name             string
	Style            pgtype.Text
	Kind             pgtype.Text
	Phone            pgtype.Text
	Website          pgtype.Text
	Street           pgtype.Text
	Housenumber      pgtype.Text
	Postal           pgtype.Text
	City             pgtype.Text
	ShortDescription pgtype.Text
	Description      pgtype.Text
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const restaurantColumns = `id, version, name, style, kind, phone, website,
	street, housenumber, postal, city, short_description, description,
	created_at, updated_at`

func scanRestaurant(row interface{ Scan(...any) error }) (Restaurant, error) {
	var r Restaurant
	err := row.Scan(&r.ID, &r.Version, &r.Name, &r.Style, &r.Kind, &r.Phone,
		&r.Website, &r.Street, &r.Housenumber, &r.Postal, &r.City,
		&r.ShortDescription, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// RestaurantParams carries the writable restaurant fields for create and
// update.
type RestaurantParams struct {
	ID               uuid.UUID
	Name             string
	Style            pgtype.Text
	Kind             pgtype.Text
	Phone            pgtype.Text
	Website          pgtype.Text
	Street           pgtype.Text
	Housenumber      pgtype.Text
	Postal           pgtype.Text
	City             pgtype.Text
	ShortDescription pgtype.Text
	Description      pgtype.Text
}

const createRestaurant = `
INSERT INTO restaurants (id, version, name, style, kind, phone, website,
	street, housenumber, postal, city, short_description, description)
VALUES (gen_random_uuid(), gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + restaurantColumns

// CreateRestaurant inserts a restaurant and returns the full row.
func (q *Queries) CreateRestaurant(ctx context.Context, arg RestaurantParams) (Restaurant, error) {
	return scanRestaurant(q.db.QueryRow(ctx, createRestaurant,
		arg.Name, arg.Style, arg.Kind, arg.Phone, arg.Website, arg.Street,
		arg.Housenumber, arg.Postal, arg.City, arg.ShortDescription,
		arg.Description))
}

const getRestaurant = `SELECT ` + restaurantColumns + ` FROM restaurants WHERE id = $1`

// GetRestaurant fetches one restaurant; pgx.ErrNoRows when absent.
func (q *Queries) GetRestaurant(ctx context.Context, id uuid.UUID) (Restaurant, error) {
	return scanRestaurant(q.db.QueryRow(ctx, getRestaurant, id))
}

const listRestaurants = `SELECT ` + restaurantColumns + ` FROM restaurants ORDER BY name`

// ListRestaurants returns the whole directory.
func (q *Queries) ListRestaurants(ctx context.Context) ([]Restaurant, error) {
	rows, err := q.db.Query(ctx, listRestaurants)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var restaurants []Restaurant
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		restaurants = append(restaurants, r)
	}
	return restaurants, rows.Err()
}

const updateRestaurant = `
UPDATE restaurants SET
	name = $2, style = $3, kind = $4, phone = $5, website = $6, street = $7,
	housenumber = $8, postal = $9, city = $10, short_description = $11,
	description = $12,
	version = gen_random_uuid(), updated_at = now()
WHERE id = $1
RETURNING ` + restaurantColumns

// UpdateRestaurant writes the new field values and returns the row.
func (q *Queries) UpdateRestaurant(ctx context.Context, arg RestaurantParams) (Restaurant, error) {
	return scanRestaurant(q.db.QueryRow(ctx, updateRestaurant,
		arg.ID, arg.Name, arg.Style, arg.Kind, arg.Phone, arg.Website,
		arg.Street, arg.Housenumber, arg.Postal, arg.City,
		arg.ShortDescription, arg.Description))
}

const deleteRestaurant = `DELETE FROM restaurants WHERE id = $1`

// DeleteRestaurant removes the restaurant row.
func (q *Queries) DeleteRestaurant(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteRestaurant, id)
	return err
}
