// Package service owns the server-side order rules: lifecycle transitions,
// metadata validation and the same edit-permission matrix the clients apply
// locally. Handlers stay thin; everything that can say "no" lives here.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/mealtime/api/internal/enum"
	"github.com/mealtime/api/internal/model"
	"github.com/mealtime/api/internal/permission"
	"github.com/mealtime/api/internal/store"
	"github.com/mealtime/api/internal/validate"
)

// Errors returned by the order service.
var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrPositionNotFound     = errors.New("position not found")
	ErrIllegalTransition    = errors.New("illegal state transition")
	ErrOrderNotEditable     = errors.New("order is not editable")
	ErrOrderFull            = errors.New("order has reached its meal count limit")
	ErrPositionImmutable    = errors.New("position can no longer be edited")
	ErrPositionNotRemovable = errors.New("position can no longer be removed")
	ErrValidation           = errors.New("validation failed")
)

// IsValidationError reports whether err should map to a 400 rather than a
// 409 or 500.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// legalTransitions is the lifecycle table. LOCKED may reopen; REVOKED is
// reachable while the order has not been placed at the restaurant yet.
var legalTransitions = map[string][]string{
	enum.OrderStateNew:       {enum.OrderStateOpen, enum.OrderStateRevoked},
	enum.OrderStateOpen:      {enum.OrderStateLocked, enum.OrderStateRevoked},
	enum.OrderStateLocked:    {enum.OrderStateOrdered, enum.OrderStateOpen, enum.OrderStateRevoked},
	enum.OrderStateOrdered:   {enum.OrderStateDelivered},
	enum.OrderStateDelivered: {enum.OrderStateArchived},
}

func transitionAllowed(from, to string) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order service needs.
// Satisfied by *store.Queries.
type OrderStore interface {
	CreateOrder(ctx context.Context, arg store.CreateOrderParams) (store.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error)
	ListOrders(ctx context.Context, state string) ([]store.Order, error)
	UpdateOrderInfos(ctx context.Context, arg store.UpdateOrderInfosParams) (store.Order, error)
	UpdateOrderState(ctx context.Context, arg store.UpdateOrderStateParams) (store.Order, error)
	BumpOrderVersion(ctx context.Context, id uuid.UUID) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	CreatePosition(ctx context.Context, arg store.CreatePositionParams) (store.OrderPosition, error)
	GetPosition(ctx context.Context, id, orderID uuid.UUID) (store.OrderPosition, error)
	ListPositionsByOrder(ctx context.Context, orderID uuid.UUID) ([]store.OrderPosition, error)
	CountPositionsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	UpdatePosition(ctx context.Context, arg store.UpdatePositionParams) (store.OrderPosition, error)
	DeletePosition(ctx context.Context, id, orderID uuid.UUID) error
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db store.DBTX) OrderStore

// OrderService handles order business logic. Reads go through store;
// mutations open a transaction and build a store from it via newStore.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, st OrderStore, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, store: st, newStore: newStore}
}

// CreateOrder opens a fresh order in state NEW for the given restaurant.
func (s *OrderService) CreateOrder(ctx context.Context, restaurantID uuid.UUID) (*model.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	st := s.newStore(tx)
	row, err := st.CreateOrder(ctx, store.CreateOrderParams{
		RestaurantID: restaurantID,
		State:        enum.OrderStateNew,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	o := rowToOrder(row, nil)
	return &o, nil
}

// GetOrder assembles the full aggregate (order plus positions).
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return s.loadOrder(ctx, s.store, id)
}

// ListOrders returns the aggregates, optionally filtered by state.
func (s *OrderService) ListOrders(ctx context.Context, state string) ([]model.Order, error) {
	if state != "" && !enum.IsValidOrderState(state) {
		return nil, fmt.Errorf("%w: unknown state %q", ErrValidation, state)
	}
	st := s.store
	rows, err := st.ListOrders(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]model.Order, 0, len(rows))
	for _, row := range rows {
		posRows, err := st.ListPositionsByOrder(ctx, row.ID)
		if err != nil {
			return nil, fmt.Errorf("list positions: %w", err)
		}
		orders = append(orders, rowToOrder(row, posRows))
	}
	return orders, nil
}

// Transition moves an order to the target lifecycle state.
func (s *OrderService) Transition(ctx context.Context, id uuid.UUID, target string) (*model.Order, error) {
	if !enum.IsValidOrderState(target) {
		return nil, fmt.Errorf("%w: unknown state %q", ErrValidation, target)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	st := s.newStore(tx)
	row, err := st.GetOrder(ctx, id)
	if err != nil {
		return nil, mapNoRows(err, ErrOrderNotFound)
	}
	if !transitionAllowed(row.State, target) {
		return nil, fmt.Errorf("%w: %s to %s", ErrIllegalTransition, row.State, target)
	}

	row, err = st.UpdateOrderState(ctx, store.UpdateOrderStateParams{ID: id, State: target})
	if err != nil {
		return nil, fmt.Errorf("update state: %w", err)
	}
	posRows, err := st.ListPositionsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	o := rowToOrder(row, posRows)
	return &o, nil
}

// DeleteOrder removes an order that never got going; anything with
// positions or past OPEN is revoked instead so its history survives.
func (s *OrderService) DeleteOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	st := s.newStore(tx)
	row, err := st.GetOrder(ctx, id)
	if err != nil {
		return nil, mapNoRows(err, ErrOrderNotFound)
	}
	count, err := st.CountPositionsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count positions: %w", err)
	}

	empty := count == 0 &&
		(row.State == enum.OrderStateNew || row.State == enum.OrderStateOpen)
	if empty {
		if err := st.DeleteOrder(ctx, id); err != nil {
			return nil, fmt.Errorf("delete order: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		return nil, nil
	}

	if !transitionAllowed(row.State, enum.OrderStateRevoked) {
		return nil, fmt.Errorf("%w: %s to %s", ErrIllegalTransition, row.State, enum.OrderStateRevoked)
	}
	row, err = st.UpdateOrderState(ctx, store.UpdateOrderStateParams{ID: id, State: enum.OrderStateRevoked})
	if err != nil {
		return nil, fmt.Errorf("revoke order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	o := rowToOrder(row, nil)
	return &o, nil
}

// SetOrderInfos validates and writes the full metadata set.
func (s *OrderService) SetOrderInfos(ctx context.Context, id uuid.UUID, patch model.OrderInfosPatch) (*model.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	st := s.newStore(tx)
	row, err := st.GetOrder(ctx, id)
	if err != nil {
		return nil, mapNoRows(err, ErrOrderNotFound)
	}
	if !permission.For(permission.Query{State: row.State}).CanFullyEdit {
		return nil, ErrOrderNotEditable
	}
	count, err := st.CountPositionsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count positions: %w", err)
	}
	if err := validateInfos(patch, int(count)); err != nil {
		return nil, err
	}

	maxMeals := pgtype.Int4{}
	if patch.MaximumMealCount != nil {
		maxMeals = pgtype.Int4{Int32: int32(*patch.MaximumMealCount), Valid: true}
	}
	row, err = st.UpdateOrderInfos(ctx, store.UpdateOrderInfosParams{
		ID:                  id,
		Orderer:             textOrNull(patch.Orderer),
		Fetcher:             textOrNull(patch.Fetcher),
		MoneyCollectionType: textOrNull(patch.MoneyCollectionType),
		MoneyCollector:      textOrNull(patch.MoneyCollector),
		OrderClosingTime:    textOrNull(patch.OrderClosingTime),
		OrderText:           textOrNull(patch.OrderText),
		MaximumMealCount:    maxMeals,
	})
	if err != nil {
		return nil, fmt.Errorf("update infos: %w", err)
	}
	posRows, err := st.ListPositionsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	o := rowToOrder(row, posRows)
	return &o, nil
}

// CreatePosition adds a line item, enforcing the permission matrix and the
// meal cap against the server's own state.
func (s *OrderService) CreatePosition(ctx context.Context, orderID uuid.UUID, patch model.OrderPositionPatch) (*model.OrderPosition, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	st := s.newStore(tx)
	row, err := st.GetOrder(ctx, orderID)
	if err != nil {
		return nil, mapNoRows(err, ErrOrderNotFound)
	}
	count, err := st.CountPositionsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("count positions: %w", err)
	}

	caps := permission.For(permission.Query{
		State:            row.State,
		IsNew:            true,
		PositionCount:    int(count),
		MaximumMealCount: int4Ptr(row.MaximumMealCount),
	})
	if !caps.CanCreate {
		if permission.For(permission.Query{State: row.State}).CanFullyEdit {
			return nil, ErrOrderFull
		}
		return nil, ErrOrderNotEditable
	}

	name, meal, price, paid, tip, err := positionFields(patch, nil)
	if err != nil {
		return nil, err
	}

	posRow, err := st.CreatePosition(ctx, store.CreatePositionParams{
		OrderID: orderID,
		Name:    name,
		Meal:    meal,
		Price:   store.DecimalToNumeric(price),
		Paid:    store.NullableNumeric(paid),
		Tip:     store.NullableNumeric(tip),
	})
	if err != nil {
		return nil, fmt.Errorf("create position: %w", err)
	}
	if err := st.BumpOrderVersion(ctx, orderID); err != nil {
		return nil, fmt.Errorf("bump version: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	p := rowToPosition(posRow)
	return &p, nil
}

// UpdatePosition patches a line item. Identity and price edits need the
// full-edit capability; payment edits get through until the position is
// settled or the order reaches a terminal state.
func (s *OrderService) UpdatePosition(ctx context.Context, orderID, positionID uuid.UUID, patch model.OrderPositionPatch) (*model.OrderPosition, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	st := s.newStore(tx)
	row, err := st.GetOrder(ctx, orderID)
	if err != nil {
		return nil, mapNoRows(err, ErrOrderNotFound)
	}
	posRow, err := st.GetPosition(ctx, positionID, orderID)
	if err != nil {
		return nil, mapNoRows(err, ErrPositionNotFound)
	}
	current := rowToPosition(posRow)

	caps := permission.For(permission.Query{
		State:       row.State,
		IsFullyPaid: current.IsPaid(),
	})
	touchesIdentity := patch.Name != nil || patch.Meal != nil || patch.Price != nil
	if touchesIdentity && !caps.CanFullyEdit {
		return nil, ErrPositionImmutable
	}
	if !caps.CanPartiallyEdit {
		return nil, ErrPositionImmutable
	}

	name, meal, price, paid, tip, err := positionFields(patch, &current)
	if err != nil {
		return nil, err
	}

	posRow, err = st.UpdatePosition(ctx, store.UpdatePositionParams{
		ID:      positionID,
		OrderID: orderID,
		Name:    name,
		Meal:    meal,
		Price:   store.DecimalToNumeric(price),
		Paid:    store.NullableNumeric(paid),
		Tip:     store.NullableNumeric(tip),
	})
	if err != nil {
		return nil, fmt.Errorf("update position: %w", err)
	}
	if err := st.BumpOrderVersion(ctx, orderID); err != nil {
		return nil, fmt.Errorf("bump version: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	p := rowToPosition(posRow)
	return &p, nil
}

// DeletePosition removes a line item while the order still allows it.
func (s *OrderService) DeletePosition(ctx context.Context, orderID, positionID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	st := s.newStore(tx)
	row, err := st.GetOrder(ctx, orderID)
	if err != nil {
		return mapNoRows(err, ErrOrderNotFound)
	}
	if !permission.For(permission.Query{State: row.State}).CanDelete {
		return ErrPositionNotRemovable
	}
	if _, err := st.GetPosition(ctx, positionID, orderID); err != nil {
		return mapNoRows(err, ErrPositionNotFound)
	}
	if err := st.DeletePosition(ctx, positionID, orderID); err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	if err := st.BumpOrderVersion(ctx, orderID); err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// --- helpers ---

func (s *OrderService) loadOrder(ctx context.Context, st OrderStore, id uuid.UUID) (*model.Order, error) {
	row, err := st.GetOrder(ctx, id)
	if err != nil {
		return nil, mapNoRows(err, ErrOrderNotFound)
	}
	posRows, err := st.ListPositionsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	o := rowToOrder(row, posRows)
	return &o, nil
}

func mapNoRows(err error, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return fmt.Errorf("query: %w", err)
}

// validateInfos runs the same field validators the editing clients run.
func validateInfos(patch model.OrderInfosPatch, positionCount int) error {
	checks := []struct {
		field string
		msg   string
	}{
		{"orderer", validate.Orderer(patch.Orderer)},
		{"fetcher", validate.Fetcher(patch.Fetcher)},
		{"moneyCollector", validate.MoneyCollector(patch.MoneyCollector)},
		{"orderClosingTime", validate.ClosingTime(patch.OrderClosingTime)},
	}
	for _, c := range checks {
		if validate.IsError(c.msg) {
			return fmt.Errorf("%w: %s: %s", ErrValidation, c.field, c.msg)
		}
	}
	if patch.MoneyCollectionType != "" && !enum.IsValidMoneyCollection(patch.MoneyCollectionType) {
		return fmt.Errorf("%w: moneyCollectionType: unknown value %q", ErrValidation, patch.MoneyCollectionType)
	}
	if patch.MaximumMealCount != nil {
		if *patch.MaximumMealCount <= 1 {
			return fmt.Errorf("%w: maximumMealCount: must be greater than 1", ErrValidation)
		}
		if *patch.MaximumMealCount < positionCount {
			return fmt.Errorf("%w: maximumMealCount: below current position count", ErrValidation)
		}
	}
	return nil
}

// positionFields merges a patch over the current position (nil on create)
// and validates the result.
func positionFields(patch model.OrderPositionPatch, current *model.OrderPosition) (name, meal string, price decimal.Decimal, paid, tip *decimal.Decimal, err error) {
	if current != nil {
		name, meal, price = current.Name, current.Meal, current.Price
		paid, tip = current.Paid, current.Tip
	}
	if patch.Name != nil {
		name = *patch.Name
	}
	if patch.Meal != nil {
		meal = *patch.Meal
	}
	if patch.Price != nil {
		price = *patch.Price
	}
	if patch.Paid != nil {
		paid = patch.Paid
	}
	if patch.Tip != nil {
		tip = patch.Tip
	}

	if name == "" {
		return "", "", decimal.Zero, nil, nil, fmt.Errorf("%w: name: is required", ErrValidation)
	}
	if meal == "" {
		return "", "", decimal.Zero, nil, nil, fmt.Errorf("%w: meal: is required", ErrValidation)
	}
	if !price.IsPositive() {
		return "", "", decimal.Zero, nil, nil, fmt.Errorf("%w: price: must be greater than zero", ErrValidation)
	}
	if paid != nil {
		if paid.IsNegative() {
			return "", "", decimal.Zero, nil, nil, fmt.Errorf("%w: paid: must not be negative", ErrValidation)
		}
		if paid.LessThan(price) {
			return "", "", decimal.Zero, nil, nil, fmt.Errorf("%w: paid: is less than the price", ErrValidation)
		}
	}
	if tip != nil {
		if paid == nil {
			return "", "", decimal.Zero, nil, nil, fmt.Errorf("%w: tip: requires a paid amount", ErrValidation)
		}
		if tip.IsNegative() {
			return "", "", decimal.Zero, nil, nil, fmt.Errorf("%w: tip: must not be negative", ErrValidation)
		}
		if tip.GreaterThan(paid.Sub(price)) {
			return "", "", decimal.Zero, nil, nil, fmt.Errorf("%w: tip: exceeds the change", ErrValidation)
		}
	}
	return name, meal, price, paid, tip, nil
}

func rowToOrder(row store.Order, posRows []store.OrderPosition) model.Order {
	o := model.Order{
		ID:           row.ID,
		RestaurantID: row.RestaurantID,
		Version:      row.Version,
		State:        row.State,
		Infos: model.OrderInfos{
			Orderer:             textOrEmpty(row.Orderer),
			Fetcher:             textOrEmpty(row.Fetcher),
			MoneyCollectionType: textOrEmpty(row.MoneyCollectionType),
			MoneyCollector:      textOrEmpty(row.MoneyCollector),
			OrderClosingTime:    textOrEmpty(row.OrderClosingTime),
			OrderText:           textOrEmpty(row.OrderText),
			MaximumMealCount:    int4Ptr(row.MaximumMealCount),
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	o.Positions = make([]model.OrderPosition, len(posRows))
	for i, p := range posRows {
		o.Positions[i] = rowToPosition(p)
	}
	return o
}

func rowToPosition(row store.OrderPosition) model.OrderPosition {
	return model.OrderPosition{
		ID:    row.ID,
		Index: int(row.PositionIndex),
		Name:  row.Name,
		Meal:  row.Meal,
		Price: store.NumericToDecimal(row.Price),
		Paid:  store.NullableDecimal(row.Paid),
		Tip:   store.NullableDecimal(row.Tip),
	}
}

func textOrEmpty(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func int4Ptr(n pgtype.Int4) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int32)
	return &v
}
