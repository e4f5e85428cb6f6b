package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mealtime/api/internal/enum"
	"github.com/mealtime/api/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intp(n int) *int { return &n }

func openOrder(positions ...model.OrderPosition) *model.Order {
	return &model.Order{
		ID:        uuid.New(),
		State:     enum.OrderStateOpen,
		Positions: positions,
	}
}

func newPositionHarness(t *testing.T, o *model.Order) (*PositionEditor, *mockOrderAPI, *recordingNotifier, *fakeClock) {
	t.Helper()
	api := &mockOrderAPI{}
	notify := &recordingNotifier{}
	clock := newFakeClock()
	e := NewPositionEditor(context.Background(), api, notify, clock, o.ID)
	e.ApplyOrder(o)
	return e, api, notify, clock
}

func mustSet(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
}

func TestCreateDebounceSingleDispatch(t *testing.T) {
	e, api, _, clock := newPositionHarness(t, openOrder())

	mustSet(t, e.SetName("Max"))
	mustSet(t, e.SetMeal("64 with tofu"))

	// Three rapid edits to the same field, 200 ms apart: only the value of
	// the third may ever be sent, one quiet period after it.
	mustSet(t, e.SetPrice("1"))
	clock.Advance(200 * time.Millisecond)
	mustSet(t, e.SetPrice("12"))
	clock.Advance(200 * time.Millisecond)
	mustSet(t, e.SetPrice("12.50"))

	clock.Advance(QuietPeriod - time.Millisecond)
	if _, creates, _, _ := api.calls(); creates != 0 {
		t.Fatalf("dispatched before the quiet period elapsed")
	}

	clock.Advance(time.Millisecond)
	if _, creates, _, _ := api.calls(); creates != 1 {
		t.Fatalf("creates = %d, want exactly 1", creates)
	}
	patch := api.creates[0]
	if patch.Price == nil || !patch.Price.Equal(dec("12.50")) {
		t.Errorf("patch price = %v, want 12.50", patch.Price)
	}
	if patch.Name == nil || *patch.Name != "Max" {
		t.Errorf("patch name = %v, want Max", patch.Name)
	}

	// A successful create resets the draft for the next rapid entry.
	if e.Dirty() {
		t.Error("draft still dirty after successful create")
	}
	if f := e.Fields(); f.Name != "" || f.Price != "" {
		t.Errorf("draft not reset after create: %+v", f)
	}
	if e.State() != DraftPristine {
		t.Errorf("State = %v, want DraftPristine", e.State())
	}
}

func TestUntouchedDraftNeverDispatches(t *testing.T) {
	pos := model.OrderPosition{ID: uuid.New(), Name: "Max", Meal: "64", Price: dec("8.50")}
	e, api, _, clock := newPositionHarness(t, openOrder(pos))
	e.Select(pos)

	clock.Advance(10 * QuietPeriod)

	if infos, creates, updates, deletes := api.calls(); infos+creates+updates+deletes != 0 {
		t.Fatal("an untouched draft must never produce a dispatch")
	}
	if e.State() != DraftPristine {
		t.Errorf("State = %v, want DraftPristine", e.State())
	}
}

func TestInvalidDraftAccumulatesEdits(t *testing.T) {
	e, api, _, clock := newPositionHarness(t, openOrder())

	mustSet(t, e.SetName("Max"))
	mustSet(t, e.SetPrice("8.50"))
	// meal still missing
	clock.Advance(2 * QuietPeriod)
	if _, creates, _, _ := api.calls(); creates != 0 {
		t.Fatal("invalid draft was dispatched")
	}
	if e.State() != DraftDirtyInvalid {
		t.Errorf("State = %v, want DraftDirtyInvalid", e.State())
	}

	mustSet(t, e.SetMeal("64"))
	clock.Advance(QuietPeriod)
	if _, creates, _, _ := api.calls(); creates != 1 {
		t.Fatalf("creates = %d, want 1 after the draft became valid", creates)
	}
}

func TestFailedDispatchKeepsDraft(t *testing.T) {
	e, api, notify, clock := newPositionHarness(t, openOrder())
	api.createPositionFn = func(context.Context, uuid.UUID, model.OrderPositionPatch) (*model.OrderPosition, error) {
		return nil, errors.New("backend says no")
	}

	mustSet(t, e.SetName("Max"))
	mustSet(t, e.SetMeal("64"))
	mustSet(t, e.SetPrice("8.50"))
	clock.Advance(QuietPeriod)

	if _, creates, _, _ := api.calls(); creates != 1 {
		t.Fatalf("creates = %d, want 1", creates)
	}
	if notify.count() != 1 {
		t.Fatalf("notifier calls = %d, want 1", notify.count())
	}
	if !e.Dirty() {
		t.Error("dirty flag must survive a failed dispatch")
	}
	if f := e.Fields(); f.Name != "Max" || f.Meal != "64" || f.Price != "8.50" {
		t.Errorf("field values rolled back after failure: %+v", f)
	}

	// No automatic retry: nothing further happens until the next edit.
	clock.Advance(5 * QuietPeriod)
	if _, creates, _, _ := api.calls(); creates != 1 {
		t.Fatal("a failed dispatch must not be retried automatically")
	}

	// The next qualifying edit triggers exactly one fresh attempt.
	api.createPositionFn = nil
	mustSet(t, e.SetPrice("9.00"))
	clock.Advance(QuietPeriod)
	if _, creates, _, _ := api.calls(); creates != 2 {
		t.Fatalf("creates = %d, want 2 after a new edit", creates)
	}
}

func TestEditModeSendsPaymentFieldsOnly(t *testing.T) {
	pos := model.OrderPosition{ID: uuid.New(), Name: "Max", Meal: "64", Price: dec("8.50")}
	order := openOrder(pos)
	order.State = enum.OrderStateLocked
	e, api, _, clock := newPositionHarness(t, order)
	e.Select(pos)

	if err := e.SetName("Moritz"); !errors.Is(err, ErrFieldReadOnly) {
		t.Fatalf("SetName in LOCKED = %v, want ErrFieldReadOnly", err)
	}
	mustSet(t, e.SetPaid("10.00"))
	mustSet(t, e.SetTip("1.00"))
	clock.Advance(QuietPeriod)

	if _, _, updates, _ := api.calls(); updates != 1 {
		t.Fatalf("updates = %d, want 1", updates)
	}
	patch := api.updates[0]
	if patch.Name != nil || patch.Meal != nil || patch.Price != nil {
		t.Errorf("payment-only patch must not carry name/meal/price: %+v", patch)
	}
	if patch.Paid == nil || !patch.Paid.Equal(dec("10.00")) {
		t.Errorf("patch paid = %v, want 10.00", patch.Paid)
	}
	if patch.Tip == nil || !patch.Tip.Equal(dec("1.00")) {
		t.Errorf("patch tip = %v, want 1.00", patch.Tip)
	}
	if e.Dirty() {
		t.Error("dirty flag not cleared after acknowledged update")
	}
}

func TestFullyPaidPositionIsImmutable(t *testing.T) {
	pos := model.OrderPosition{
		ID: uuid.New(), Name: "Max", Meal: "64",
		Price: dec("8.50"), Paid: decp("10.00"), Tip: decp("1.50"),
	}
	order := openOrder(pos)
	order.State = enum.OrderStateLocked
	e, api, _, _ := newPositionHarness(t, order)
	e.Select(pos)

	if err := e.SetPaid("11.00"); !errors.Is(err, ErrFieldReadOnly) {
		t.Fatalf("SetPaid on a fully paid position = %v, want ErrFieldReadOnly", err)
	}
	if infos, creates, updates, deletes := api.calls(); infos+creates+updates+deletes != 0 {
		t.Fatal("denied writes must be rejected without a network call")
	}
}

func TestCreateDeniedWhenOrderFull(t *testing.T) {
	order := openOrder(
		model.OrderPosition{ID: uuid.New(), Name: "A", Meal: "1", Price: dec("5")},
		model.OrderPosition{ID: uuid.New(), Name: "B", Meal: "2", Price: dec("5")},
	)
	order.Infos.MaximumMealCount = intp(2)
	e, api, _, _ := newPositionHarness(t, order)

	if err := e.SetName("C"); !errors.Is(err, ErrFieldReadOnly) {
		t.Fatalf("SetName on a full order = %v, want ErrFieldReadOnly", err)
	}
	if _, creates, _, _ := api.calls(); creates != 0 {
		t.Fatal("no create call may be made for a full order")
	}
}

func TestReseedDiscardsUnsentEdits(t *testing.T) {
	pos := model.OrderPosition{ID: uuid.New(), Name: "Max", Meal: "64", Price: dec("8.50")}
	order := openOrder(pos)
	e, api, _, clock := newPositionHarness(t, order)
	e.Select(pos)

	mustSet(t, e.SetMeal("something else"))

	// A fresher snapshot with changed fields arrives before the quiet period
	// elapses: the remote wins, the local edit is silently discarded.
	updated := pos
	updated.Meal = "65 with duck"
	e.ApplyOrder(openOrder(updated))

	if f := e.Fields(); f.Meal != "65 with duck" {
		t.Errorf("draft meal = %q, want re-seeded remote value", f.Meal)
	}
	if e.Dirty() {
		t.Error("re-seed must clear the dirty flag")
	}

	clock.Advance(5 * QuietPeriod)
	if _, _, updates, _ := api.calls(); updates != 0 {
		t.Fatal("discarded edits must never be dispatched")
	}
}

func TestVanishedPositionFallsBackToCreateMode(t *testing.T) {
	pos := model.OrderPosition{ID: uuid.New(), Name: "Max", Meal: "64", Price: dec("8.50")}
	e, _, _, _ := newPositionHarness(t, openOrder(pos))
	e.Select(pos)

	e.ApplyOrder(openOrder())
	if e.Editing() {
		t.Error("editor must drop to create mode when the selected position vanished")
	}
}

func TestAbortDiscardsWithoutNetworkCall(t *testing.T) {
	pos := model.OrderPosition{ID: uuid.New(), Name: "Max", Meal: "64", Price: dec("8.50")}
	e, api, _, clock := newPositionHarness(t, openOrder(pos))
	e.Select(pos)

	mustSet(t, e.SetMeal("changed"))
	e.Abort()

	if e.Editing() {
		t.Error("abort must return to create mode")
	}
	clock.Advance(5 * QuietPeriod)
	if infos, creates, updates, deletes := api.calls(); infos+creates+updates+deletes != 0 {
		t.Fatal("abort must not produce any network call")
	}
}

func TestDelete(t *testing.T) {
	pos := model.OrderPosition{ID: uuid.New(), Name: "Max", Meal: "64", Price: dec("8.50")}
	e, api, _, _ := newPositionHarness(t, openOrder(pos))
	e.Select(pos)

	if err := e.Delete(pos); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, _, deletes := api.calls(); deletes != 1 {
		t.Fatalf("deletes = %d, want 1", deletes)
	}
	if e.Editing() {
		t.Error("deleting the selected position must deselect it")
	}
}

func TestDeleteDeniedPastOpen(t *testing.T) {
	pos := model.OrderPosition{ID: uuid.New(), Name: "Max", Meal: "64", Price: dec("8.50")}
	order := openOrder(pos)
	order.State = enum.OrderStateLocked
	e, api, _, _ := newPositionHarness(t, order)

	if err := e.Delete(pos); !errors.Is(err, ErrNotDeletable) {
		t.Fatalf("Delete in LOCKED = %v, want ErrNotDeletable", err)
	}
	if _, _, _, deletes := api.calls(); deletes != 0 {
		t.Fatal("denied delete must not reach the network")
	}
}

func TestSubmitBypassesQuietPeriod(t *testing.T) {
	e, api, _, clock := newPositionHarness(t, openOrder())

	mustSet(t, e.SetName("Max"))
	mustSet(t, e.SetMeal("64"))
	mustSet(t, e.SetPrice("8.50"))
	e.Submit()

	if _, creates, _, _ := api.calls(); creates != 1 {
		t.Fatalf("creates = %d, want 1 immediately after Submit", creates)
	}
	// The superseded timer must not fire a duplicate.
	clock.Advance(5 * QuietPeriod)
	if _, creates, _, _ := api.calls(); creates != 1 {
		t.Fatal("Submit must supersede the scheduled quiet-period dispatch")
	}
}

func TestEditDuringFlightDispatchesAgain(t *testing.T) {
	pos := model.OrderPosition{ID: uuid.New(), Name: "Max", Meal: "64", Price: dec("8.50")}
	e, api, _, clock := newPositionHarness(t, openOrder(pos))
	e.Select(pos)

	// While the first update is on the wire, another edit lands. Its value
	// must go out in a second patch; the draft stays dirty until it does.
	api.updatePositionFn = func(context.Context, uuid.UUID, uuid.UUID, model.OrderPositionPatch) error {
		api.updatePositionFn = nil
		mustSet(t, e.SetPaid("10.00"))
		return nil
	}

	mustSet(t, e.SetPaid("9.00"))
	clock.Advance(QuietPeriod)

	if _, _, updates, _ := api.calls(); updates != 1 {
		t.Fatalf("updates = %d, want 1 after the first quiet period", updates)
	}
	if !e.Dirty() {
		t.Fatal("draft must stay dirty while an unsent mid-flight edit exists")
	}

	clock.Advance(QuietPeriod)
	if _, _, updates, _ := api.calls(); updates != 2 {
		t.Fatalf("updates = %d, want 2: the mid-flight edit owes a dispatch", updates)
	}
	patch := api.updates[1]
	if patch.Paid == nil || !patch.Paid.Equal(dec("10.00")) {
		t.Errorf("second patch paid = %v, want 10.00", patch.Paid)
	}
	if e.Dirty() {
		t.Error("dirty flag not cleared after the second acknowledged patch")
	}

	clock.Advance(5 * QuietPeriod)
	if _, _, updates, _ := api.calls(); updates != 2 {
		t.Fatal("no further dispatch may follow once the draft is settled")
	}
}

func TestEditModeRequiresPaid(t *testing.T) {
	pos := model.OrderPosition{ID: uuid.New(), Name: "Max", Meal: "64", Price: dec("8.50")}
	e, api, _, clock := newPositionHarness(t, openOrder(pos))
	e.Select(pos)

	// Editing an existing position validates paid even when empty.
	mustSet(t, e.SetMeal("65"))
	clock.Advance(QuietPeriod)
	if _, _, updates, _ := api.calls(); updates != 0 {
		t.Fatal("draft with missing paid must not dispatch in edit mode")
	}

	mustSet(t, e.SetPaid("9.00"))
	clock.Advance(QuietPeriod)
	if _, _, updates, _ := api.calls(); updates != 1 {
		t.Fatalf("updates = %d, want 1", updates)
	}
}
