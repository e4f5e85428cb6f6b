package editor

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mealtime/api/internal/enum"
	"github.com/mealtime/api/internal/model"
	"github.com/mealtime/api/internal/permission"
	"github.com/mealtime/api/internal/validate"
)

// DefaultClosingTime is seeded when an order carries no closing time yet.
const DefaultClosingTime = "11:30"

// InfoErrors holds the per-field validation results of the info draft.
type InfoErrors struct {
	Orderer          string
	Fetcher          string
	MoneyCollector   string
	ClosingTime      string
	MaximumMealCount string
}

// Any reports whether any field carries an actual error.
func (ie InfoErrors) Any() bool {
	return validate.IsError(ie.Orderer) || validate.IsError(ie.Fetcher) ||
		validate.IsError(ie.MoneyCollector) || validate.IsError(ie.ClosingTime) ||
		validate.IsError(ie.MaximumMealCount)
}

// InfoFields is a snapshot of the info draft's raw field values.
type InfoFields struct {
	Orderer             string
	Fetcher             string
	MoneyCollectionType string
	MoneyCollector      string
	ClosingTime         string
	OrderText           string
	MaximumMealCount    string
}

// InfoEditor drives the draft for the order-level metadata. The full info
// set is dispatched as one patch after the quiet period; onUpdated runs
// after every acknowledged patch so the caller can refresh its read-only
// view of the aggregate.
type InfoEditor struct {
	api       OrderAPI
	notify    Notifier
	onUpdated func()
	ctx       context.Context

	mu   sync.Mutex
	sync syncChannel

	orderID       uuid.UUID
	orderState    string
	positionCount int
	seeded        model.OrderInfos

	touched        bool
	orderer        string
	fetcher        string
	collectionType string
	collector      string
	closingTime    string
	orderText      string
	maximumMeals   string
}

// NewInfoEditor creates a metadata editor for the given order. onUpdated may
// be nil. Pass SystemClock() outside tests.
func NewInfoEditor(ctx context.Context, api OrderAPI, notify Notifier, clock Clock, orderID uuid.UUID, onUpdated func()) *InfoEditor {
	e := &InfoEditor{
		api:            api,
		notify:         notify,
		onUpdated:      onUpdated,
		ctx:            ctx,
		orderID:        orderID,
		collectionType: enum.MoneyCollectionCash,
		closingTime:    DefaultClosingTime,
	}
	e.sync = syncChannel{clock: clock, quiet: QuietPeriod}
	return e
}

// ApplyOrder feeds a fresh remote snapshot into the editor. When any info
// field differs from the last seeded snapshot the whole draft is re-seeded,
// silently discarding unsent edits: the remote always wins on arrival.
func (e *InfoEditor) ApplyOrder(o *model.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.orderState = o.State
	e.positionCount = len(o.Positions)

	if sameInfos(e.seeded, o.Infos) {
		return
	}
	e.seeded = o.Infos
	e.seedLocked()
}

// SetOrderer updates the "who orders" field.
func (e *InfoEditor) SetOrderer(v string) error { return e.set(&e.orderer, v) }

// SetFetcher updates the "who fetches" field.
func (e *InfoEditor) SetFetcher(v string) error { return e.set(&e.fetcher, v) }

// SetOrderText updates the free order text.
func (e *InfoEditor) SetOrderText(v string) error { return e.set(&e.orderText, v) }

// SetClosingTime updates the order closing time field text ("HH:MM" or
// "HH:MM:SS").
func (e *InfoEditor) SetClosingTime(v string) error { return e.set(&e.closingTime, v) }

// SetMaximumMealCount updates the meal cap field text.
func (e *InfoEditor) SetMaximumMealCount(v string) error { return e.set(&e.maximumMeals, v) }

// SetMoneyCollectionType switches between CASH and PAYPAL.
func (e *InfoEditor) SetMoneyCollectionType(v string) error {
	if !enum.IsValidMoneyCollection(v) {
		return ErrFieldReadOnly
	}
	return e.set(&e.collectionType, v)
}

// SetMoneyCollector updates the "money goes to" field. A value mentioning
// PayPal force-switches the collection type to PAYPAL in the same step, so
// the derived link is consistent with the field before any dispatch.
func (e *InfoEditor) SetMoneyCollector(v string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editableLocked() {
		return ErrFieldReadOnly
	}
	e.collector = v
	if validate.LooksLikePayPal(v) {
		e.collectionType = enum.MoneyCollectionPayPal
	}
	e.touchLocked()
	return nil
}

// PayPalLink returns the derived collector link, or "" when none applies.
func (e *InfoEditor) PayPalLink() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return validate.PayPalLink(e.collectionType, e.collector)
}

// Fields returns the raw draft field values.
func (e *InfoEditor) Fields() InfoFields {
	e.mu.Lock()
	defer e.mu.Unlock()
	return InfoFields{
		Orderer:             e.orderer,
		Fetcher:             e.fetcher,
		MoneyCollectionType: e.collectionType,
		MoneyCollector:      e.collector,
		ClosingTime:         e.closingTime,
		OrderText:           e.orderText,
		MaximumMealCount:    e.maximumMeals,
	}
}

// Errors returns the per-field validation results; all "" until touched.
func (e *InfoEditor) Errors() InfoErrors {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.touched {
		return InfoErrors{}
	}
	return e.errorsLocked()
}

// Valid reports whether the draft is eligible for dispatch.
func (e *InfoEditor) Valid() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validLocked()
}

// Dirty reports whether unsent edits exist.
func (e *InfoEditor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.touched
}

// State returns the three-valued draft state.
func (e *InfoEditor) State() DraftState {
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
// period.
func (e *InfoEditor) Submit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sync.cancel()
	e.sendLocked()
}

// --- internals (e.mu held) ---

func (e *InfoEditor) set(field *string, v string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editableLocked() {
		return ErrFieldReadOnly
	}
	*field = v
	e.touchLocked()
	return nil
}

// editableLocked: order metadata follows the full-edit capability of the
// matrix, so it freezes together with name/meal/price once the order locks.
func (e *InfoEditor) editableLocked() bool {
	return permission.For(permission.Query{State: e.orderState}).CanFullyEdit
}

func (e *InfoEditor) touchLocked() {
	e.touched = true
	e.sync.bump(e.fire)
}

func (e *InfoEditor) seedLocked() {
	e.touched = false
	e.sync.cancel()

	e.orderer = e.seeded.Orderer
	e.fetcher = e.seeded.Fetcher
	e.collectionType = e.seeded.MoneyCollectionType
	if e.collectionType == "" {
		e.collectionType = enum.MoneyCollectionCash
	}
	e.collector = e.seeded.MoneyCollector
	e.closingTime = e.seeded.OrderClosingTime
	if e.closingTime == "" {
		e.closingTime = DefaultClosingTime
	}
	e.orderText = e.seeded.OrderText
	if e.seeded.MaximumMealCount != nil {
		e.maximumMeals = strconv.Itoa(*e.seeded.MaximumMealCount)
	} else {
		e.maximumMeals = ""
	}
}

func (e *InfoEditor) errorsLocked() InfoErrors {
	return InfoErrors{
		Orderer:          validate.Orderer(e.orderer),
		Fetcher:          validate.Fetcher(e.fetcher),
		MoneyCollector:   validate.MoneyCollector(e.collector),
		ClosingTime:      validate.ClosingTime(e.closingTime),
		MaximumMealCount: validate.MaximumMealCount(e.maximumMeals, e.positionCount),
	}
}

func (e *InfoEditor) validLocked() bool {
	return e.touched && !e.errorsLocked().Any()
}

// fire runs on the timer goroutine when a quiet period elapses.
func (e *InfoEditor) fire(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sync.current(gen) {
		return
	}
	e.sendLocked()
}

// sendLocked runs one dispatch attempt; e.mu must be held. The metadata
// patch always carries the full info set.
func (e *InfoEditor) sendLocked() {
	if !e.validLocked() || !e.editableLocked() {
		return
	}
	if !e.sync.begin() {
		return
	}

	patch := e.patchLocked()
	orderID := e.orderID
	gen := e.sync.gen

	e.mu.Unlock()
	err := e.api.SetOrderInfo(e.ctx, orderID, patch)
	if err != nil {
		e.notify.Error("order infos could not be saved", err)
	} else if e.onUpdated != nil {
		e.onUpdated()
	}
	e.mu.Lock()

	// An edit arriving while the patch was in flight bumps a new cycle;
	// the draft stays dirty until that later patch goes out.
	if err == nil && e.sync.current(gen) {
		e.touched = false
	}
	e.sync.finish(e.fire)
}

func (e *InfoEditor) patchLocked() model.OrderInfosPatch {
	patch := model.OrderInfosPatch{
		Orderer:             e.orderer,
		Fetcher:             e.fetcher,
		MoneyCollectionType: e.collectionType,
		MoneyCollector:      e.collector,
		OrderClosingTime:    normalizeTime(e.closingTime),
		OrderText:           e.orderText,
	}
	if n, err := strconv.Atoi(e.maximumMeals); err == nil {
		patch.MaximumMealCount = &n
	}
	return patch
}

// normalizeTime widens "HH:MM" to the wire format "HH:MM:SS".
func normalizeTime(s string) string {
	if t, err := time.Parse("15:04", s); err == nil {
		return t.Format("15:04:05")
	}
	return s
}

func sameInfos(a, b model.OrderInfos) bool {
	if a.Orderer != b.Orderer || a.Fetcher != b.Fetcher ||
		a.MoneyCollectionType != b.MoneyCollectionType || a.MoneyCollector != b.MoneyCollector ||
		a.OrderClosingTime != b.OrderClosingTime || a.OrderText != b.OrderText {
		return false
	}
	if a.MaximumMealCount == nil || b.MaximumMealCount == nil {
		return a.MaximumMealCount == b.MaximumMealCount
	}
	return *a.MaximumMealCount == *b.MaximumMealCount
}
