package editor

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mealtime/api/internal/model"
	"github.com/mealtime/api/internal/permission"
	"github.com/mealtime/api/internal/validate"
)

// Errors returned when a local edit hits a denied capability. The edit is
// rejected before any network call.
var (
	ErrFieldReadOnly = errors.New("field is not editable in the current order state")
	ErrNotDeletable  = errors.New("position cannot be deleted in the current order state")
)

// PositionErrors holds the per-field validation results of the position
// draft. A pristine draft reports "" everywhere (never validated); after the
// first edit each field carries validate.NoError or a message.
type PositionErrors struct {
	Name  string
	Meal  string
	Price string
	Paid  string
	Tip   string
}

// Any reports whether any field carries an actual error.
func (pe PositionErrors) Any() bool {
	return validate.IsError(pe.Name) || validate.IsError(pe.Meal) ||
		validate.IsError(pe.Price) || validate.IsError(pe.Paid) || validate.IsError(pe.Tip)
}

// PositionFields is a snapshot of the draft's raw field text.
type PositionFields struct {
	Name  string
	Meal  string
	Price string
	Paid  string
	Tip   string
}

// PositionEditor drives the draft for a single order line item. It operates
// in create mode (no position selected; a successful save resets the draft
// for rapid sequential entry) or edit mode (tied to one existing position).
// Edits are synchronized with the order service through a debounced patch
// channel; an untouched or invalid draft is never sent.
type PositionEditor struct {
	api    OrderAPI
	notify Notifier
	ctx    context.Context

	mu   sync.Mutex
	sync syncChannel

	orderID          uuid.UUID
	orderState       string
	positionCount    int
	maximumMealCount *int

	existing *model.OrderPosition // nil while in create mode

	touched bool
	name    string
	meal    string
	price   string
	paid    string
	tip     string
}

// NewPositionEditor creates an editor for the given order in create mode.
// Pass SystemClock() outside tests.
func NewPositionEditor(ctx context.Context, api OrderAPI, notify Notifier, clock Clock, orderID uuid.UUID) *PositionEditor {
	e := &PositionEditor{
		api:     api,
		notify:  notify,
		ctx:     ctx,
		orderID: orderID,
	}
	e.sync = syncChannel{clock: clock, quiet: QuietPeriod}
	return e
}

// ApplyOrder feeds a fresh remote snapshot into the editor: lifecycle state,
// position count and meal cap are taken over, and if the selected position
// changed remotely the draft is re-seeded from it, silently discarding any
// unsent edits. A selected position that vanished drops the editor back to
// create mode.
func (e *PositionEditor) ApplyOrder(o *model.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.orderState = o.State
	e.positionCount = len(o.Positions)
	e.maximumMealCount = o.Infos.MaximumMealCount

	if e.existing == nil {
		return
	}
	for i := range o.Positions {
		if o.Positions[i].ID == e.existing.ID {
			if !samePosition(*e.existing, o.Positions[i]) {
				p := o.Positions[i]
				e.existing = &p
				e.seedLocked()
			}
			return
		}
	}
	e.existing = nil
	e.seedLocked()
}

// Select puts the editor into edit mode for pos, seeding the draft from it.
func (e *PositionEditor) Select(pos model.OrderPosition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := pos
	e.existing = &p
	e.seedLocked()
}

// Deselect returns to create mode, discarding the draft without a network
// call.
func (e *PositionEditor) Deselect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.existing = nil
	e.seedLocked()
}

// Abort is the explicit abandon action of edit mode; it behaves like
// Deselect.
func (e *PositionEditor) Abort() {
	e.Deselect()
}

// Reset discards any unsent edits, re-seeding from the selected position or
// back to blank create-mode defaults.
func (e *PositionEditor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seedLocked()
}

// Editing reports whether an existing position is selected.
func (e *PositionEditor) Editing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.existing != nil
}

// Selected returns a copy of the position in edit mode, or nil.
func (e *PositionEditor) Selected() *model.OrderPosition {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.existing == nil {
		return nil
	}
	p := *e.existing
	return &p
}

// Capabilities returns the capability set for the current draft.
func (e *PositionEditor) Capabilities() permission.Capabilities {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capabilitiesLocked()
}

// SetName updates the name field. Rejected locally unless the lifecycle
// state allows full edits.
func (e *PositionEditor) SetName(v string) error { return e.setFull(&e.name, v) }

// SetMeal updates the meal field.
func (e *PositionEditor) SetMeal(v string) error { return e.setFull(&e.meal, v) }

// SetPrice updates the price field text.
func (e *PositionEditor) SetPrice(v string) error { return e.setFull(&e.price, v) }

// SetPaid updates the paid field text. Allowed in the payment-only states
// until the position is fully paid.
func (e *PositionEditor) SetPaid(v string) error { return e.setPartial(&e.paid, v) }

// SetTip updates the tip field text.
func (e *PositionEditor) SetTip(v string) error { return e.setPartial(&e.tip, v) }

// Fields returns the raw draft field text.
func (e *PositionEditor) Fields() PositionFields {
	e.mu.Lock()
	defer e.mu.Unlock()
	return PositionFields{Name: e.name, Meal: e.meal, Price: e.price, Paid: e.paid, Tip: e.tip}
}

// Errors returns the per-field validation results. All fields report ""
// until the draft is touched.
func (e *PositionEditor) Errors() PositionErrors {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.touched {
		return PositionErrors{}
	}
	return e.errorsLocked()
}

// Valid reports whether the draft is eligible for dispatch. An untouched
// draft is never valid, even if its seeded values would pass.
func (e *PositionEditor) Valid() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validLocked()
}

// Dirty reports whether unsent edits exist.
func (e *PositionEditor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.touched
}

// State returns the three-valued draft state.
func (e *PositionEditor) State() DraftState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.touched {
		return DraftPristine
	}
	if e.errorsLocked().Any() {
		return DraftDirtyInvalid
	}
	return DraftDirtyValid
}

// Submit dispatches the draft immediately, bypassing the remaining quiet
// period. A pristine or invalid draft is ignored.
func (e *PositionEditor) Submit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sync.cancel()
	e.sendLocked()
}

// Delete removes pos from the order. Denied locally once the order has
// progressed past OPEN. Deleting the selected position drops the editor back
// to create mode.
func (e *PositionEditor) Delete(pos model.OrderPosition) error {
	e.mu.Lock()
	caps := permission.For(permission.Query{
		State:            e.orderState,
		IsFullyPaid:      pos.IsPaid(),
		PositionCount:    e.positionCount,
		MaximumMealCount: e.maximumMealCount,
	})
	orderID := e.orderID
	selected := e.existing != nil && e.existing.ID == pos.ID
	e.mu.Unlock()

	if !caps.CanDelete {
		return ErrNotDeletable
	}
	if err := e.api.DeletePosition(e.ctx, orderID, pos.ID); err != nil {
		e.notify.Error("position could not be deleted", err)
		return err
	}

	e.mu.Lock()
	if e.positionCount > 0 {
		e.positionCount--
	}
	if selected {
		e.existing = nil
		e.seedLocked()
	}
	e.mu.Unlock()
	return nil
}

// --- internals (e.mu held) ---

func (e *PositionEditor) setFull(field *string, v string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.capabilitiesLocked().CanFullyEdit {
		return ErrFieldReadOnly
	}
	*field = v
	e.touchLocked()
	return nil
}

func (e *PositionEditor) setPartial(field *string, v string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.capabilitiesLocked().CanPartiallyEdit {
		return ErrFieldReadOnly
	}
	*field = v
	e.touchLocked()
	return nil
}

func (e *PositionEditor) touchLocked() {
	e.touched = true
	e.sync.bump(e.fire)
}

// seedLocked reloads the draft from the selected position (or blanks) and
// drops any scheduled dispatch; the discarded edits are gone for good.
func (e *PositionEditor) seedLocked() {
	e.touched = false
	e.sync.cancel()

	if e.existing == nil {
		e.name, e.meal, e.price, e.paid, e.tip = "", "", "", "", ""
		return
	}
	e.name = e.existing.Name
	e.meal = e.existing.Meal
	e.price = e.existing.Price.String()
	e.paid = amountText(e.existing.Paid)
	e.tip = amountText(e.existing.Tip)
}

func (e *PositionEditor) capabilitiesLocked() permission.Capabilities {
	var fullyPaid bool
	if e.existing != nil {
		fullyPaid = e.existing.IsPaid()
	}
	return permission.For(permission.Query{
		State:            e.orderState,
		IsNew:            e.existing == nil,
		IsFullyPaid:      fullyPaid,
		PositionCount:    e.positionCount,
		MaximumMealCount: e.maximumMealCount,
	})
}

func (e *PositionEditor) errorsLocked() PositionErrors {
	return PositionErrors{
		Name:  validate.Name(e.name),
		Meal:  validate.Meal(e.meal),
		Price: validate.Price(e.price),
		Paid:  validate.Paid(e.paid, e.price, e.existing != nil),
		Tip:   validate.Tip(e.tip, e.paid, e.price),
	}
}

func (e *PositionEditor) validLocked() bool {
	return e.touched && !e.errorsLocked().Any()
}

// fire runs on the timer goroutine when a quiet period elapses.
func (e *PositionEditor) fire(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sync.current(gen) {
		return
	}
	e.sendLocked()
}

// sendLocked runs one dispatch attempt. e.mu must be held; it is released
// around the network call so local edits keep flowing while the patch is in
// flight.
func (e *PositionEditor) sendLocked() {
	if !e.validLocked() {
		return
	}
	caps := e.capabilitiesLocked()
	creating := e.existing == nil
	if creating && !caps.CanCreate {
		return
	}
	if !creating && !caps.CanPartiallyEdit {
		return
	}
	if !e.sync.begin() {
		return
	}

	patch := e.patchLocked(caps, creating)
	orderID := e.orderID
	var positionID uuid.UUID
	if !creating {
		positionID = e.existing.ID
	}
	gen := e.sync.gen

	e.mu.Unlock()
	var err error
	if creating {
		_, err = e.api.CreatePosition(e.ctx, orderID, patch)
	} else {
		err = e.api.UpdatePosition(e.ctx, orderID, positionID, patch)
	}
	if err != nil {
		// Dirty state and field values survive; the next edit or Submit
		// makes a fresh attempt.
		e.notify.Error("position could not be saved", err)
	}
	e.mu.Lock()

	switch {
	case err != nil:
	case !e.sync.current(gen):
		// An edit arrived while the patch was in flight. The draft still
		// owes a dispatch; the deferred cycle picks it up.
		if creating {
			e.positionCount++
		}
	case creating:
		e.positionCount++
		e.existing = nil
		e.seedLocked()
	default:
		e.touched = false
	}
	e.sync.finish(e.fire)
}

// patchLocked builds the patch from the current field text: the full item
// set on create or full edit, payment fields only otherwise.
func (e *PositionEditor) patchLocked(caps permission.Capabilities, creating bool) model.OrderPositionPatch {
	var patch model.OrderPositionPatch
	if creating || caps.CanFullyEdit {
		name, meal := e.name, e.meal
		patch.Name = &name
		patch.Meal = &meal
		patch.Price = parseAmount(e.price)
	}
	patch.Paid = parseAmount(e.paid)
	patch.Tip = parseAmount(e.tip)
	return patch
}

func parseAmount(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func amountText(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func samePosition(a, b model.OrderPosition) bool {
	return a.Name == b.Name && a.Meal == b.Meal &&
		a.Price.Equal(b.Price) && sameAmount(a.Paid, b.Paid) && sameAmount(a.Tip, b.Tip)
}

func sameAmount(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
