package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mealtime/api/internal/enum"
	"github.com/mealtime/api/internal/model"
)

func infoOrder() *model.Order {
	return &model.Order{
		ID:    uuid.New(),
		State: enum.OrderStateOpen,
		Infos: model.OrderInfos{
			Orderer:             "Max",
			Fetcher:             "Moritz",
			MoneyCollectionType: enum.MoneyCollectionCash,
			MoneyCollector:      "Max",
			OrderClosingTime:    "11:30:00",
		},
	}
}

func newInfoHarness(t *testing.T, o *model.Order, onUpdated func()) (*InfoEditor, *mockOrderAPI, *recordingNotifier, *fakeClock) {
	t.Helper()
	api := &mockOrderAPI{}
	notify := &recordingNotifier{}
	clock := newFakeClock()
	e := NewInfoEditor(context.Background(), api, notify, clock, o.ID, onUpdated)
	e.ApplyOrder(o)
	return e, api, notify, clock
}

func TestInfoDebouncedFullPatch(t *testing.T) {
	refreshed := 0
	e, api, _, clock := newInfoHarness(t, infoOrder(), func() { refreshed++ })

	mustSet(t, e.SetOrderer("Maxine"))
	clock.Advance(200 * time.Millisecond)
	mustSet(t, e.SetClosingTime("12:15"))

	clock.Advance(QuietPeriod - time.Millisecond)
	if infos, _, _, _ := api.calls(); infos != 0 {
		t.Fatal("dispatched before the quiet period elapsed")
	}
	clock.Advance(time.Millisecond)

	if infos, _, _, _ := api.calls(); infos != 1 {
		t.Fatalf("infos = %d, want exactly 1", infos)
	}
	patch := api.infos[0]
	if patch.Orderer != "Maxine" || patch.Fetcher != "Moritz" {
		t.Errorf("patch must carry the full info set, got %+v", patch)
	}
	if patch.OrderClosingTime != "12:15:00" {
		t.Errorf("closing time = %q, want normalized 12:15:00", patch.OrderClosingTime)
	}
	if refreshed != 1 {
		t.Errorf("onUpdated calls = %d, want 1", refreshed)
	}
	if e.Dirty() {
		t.Error("dirty flag not cleared after acknowledged patch")
	}
}

func TestInfoPayPalInference(t *testing.T) {
	e, _, _, _ := newInfoHarness(t, infoOrder(), nil)

	mustSet(t, e.SetMoneyCollector("MyPaypal123"))
	if got := e.Fields().MoneyCollectionType; got != enum.MoneyCollectionPayPal {
		t.Errorf("collection type = %q, want forced PAYPAL", got)
	}

	// A plain name must not flip an existing CASH selection back.
	mustSet(t, e.SetMoneyCollectionType(enum.MoneyCollectionCash))
	mustSet(t, e.SetMoneyCollector("Max"))
	if got := e.Fields().MoneyCollectionType; got != enum.MoneyCollectionCash {
		t.Errorf("collection type = %q, want CASH preserved", got)
	}
}

func TestInfoPayPalLink(t *testing.T) {
	e, _, _, _ := newInfoHarness(t, infoOrder(), nil)

	if link := e.PayPalLink(); link != "" {
		t.Errorf("link = %q, want none for CASH", link)
	}

	mustSet(t, e.SetMoneyCollector("paypal.me/max"))
	if link := e.PayPalLink(); link != "http://paypal.me/max" {
		t.Errorf("link = %q, want http:// prefixed", link)
	}

	mustSet(t, e.SetMoneyCollector("https://PayPal.me/max"))
	if link := e.PayPalLink(); link != "https://PayPal.me/max" {
		t.Errorf("link = %q, want raw value kept", link)
	}
}

func TestInfoInvalidMealCapBlocksDispatch(t *testing.T) {
	order := infoOrder()
	order.Positions = []model.OrderPosition{
		{ID: uuid.New(), Name: "A", Meal: "1", Price: dec("5")},
		{ID: uuid.New(), Name: "B", Meal: "2", Price: dec("5")},
		{ID: uuid.New(), Name: "C", Meal: "3", Price: dec("5")},
	}
	e, api, _, clock := newInfoHarness(t, order, nil)

	// Cap below the current position count is invalid; edits accumulate.
	mustSet(t, e.SetMaximumMealCount("2"))
	clock.Advance(2 * QuietPeriod)
	if infos, _, _, _ := api.calls(); infos != 0 {
		t.Fatal("invalid meal cap was dispatched")
	}
	if e.State() != DraftDirtyInvalid {
		t.Errorf("State = %v, want DraftDirtyInvalid", e.State())
	}

	mustSet(t, e.SetMaximumMealCount("5"))
	clock.Advance(QuietPeriod)
	if infos, _, _, _ := api.calls(); infos != 1 {
		t.Fatalf("infos = %d, want 1", infos)
	}
	if api.infos[0].MaximumMealCount == nil || *api.infos[0].MaximumMealCount != 5 {
		t.Errorf("patch cap = %v, want 5", api.infos[0].MaximumMealCount)
	}
}

func TestInfoFailureKeepsDraft(t *testing.T) {
	refreshed := 0
	e, api, notify, clock := newInfoHarness(t, infoOrder(), func() { refreshed++ })
	api.setOrderInfoFn = func(context.Context, uuid.UUID, model.OrderInfosPatch) error {
		return errors.New("backend says no")
	}

	mustSet(t, e.SetOrderer("Maxine"))
	clock.Advance(QuietPeriod)

	if notify.count() != 1 {
		t.Fatalf("notifier calls = %d, want 1", notify.count())
	}
	if refreshed != 0 {
		t.Error("onUpdated must not run for a failed patch")
	}
	if !e.Dirty() {
		t.Error("dirty flag must survive a failed dispatch")
	}
	if e.Fields().Orderer != "Maxine" {
		t.Error("field values rolled back after failure")
	}

	clock.Advance(5 * QuietPeriod)
	if infos, _, _, _ := api.calls(); infos != 1 {
		t.Fatal("a failed dispatch must not be retried automatically")
	}
}

func TestInfoReseedDiscardsUnsentEdits(t *testing.T) {
	order := infoOrder()
	e, api, _, clock := newInfoHarness(t, order, nil)

	mustSet(t, e.SetOrderText("extra ketchup"))

	fresher := infoOrder()
	fresher.Infos.Orderer = "Somebody Else"
	e.ApplyOrder(fresher)

	if f := e.Fields(); f.Orderer != "Somebody Else" || f.OrderText != "" {
		t.Errorf("draft not re-seeded from the fresher snapshot: %+v", f)
	}
	if e.Dirty() {
		t.Error("re-seed must clear the dirty flag")
	}
	clock.Advance(5 * QuietPeriod)
	if infos, _, _, _ := api.calls(); infos != 0 {
		t.Fatal("discarded edits must never be dispatched")
	}
}

func TestInfoIdenticalSnapshotKeepsEdits(t *testing.T) {
	order := infoOrder()
	e, _, _, _ := newInfoHarness(t, order, nil)

	mustSet(t, e.SetOrderText("extra ketchup"))

	// The same snapshot arriving again (e.g. a poll) must not wipe the draft.
	e.ApplyOrder(infoOrder())
	if f := e.Fields(); f.OrderText != "extra ketchup" {
		t.Errorf("unchanged snapshot wiped the draft: %+v", f)
	}
	if !e.Dirty() {
		t.Error("unchanged snapshot must not clear the dirty flag")
	}
}

func TestInfoEditDuringFlightDispatchesAgain(t *testing.T) {
	refreshed := 0
	e, api, _, clock := newInfoHarness(t, infoOrder(), func() { refreshed++ })

	// An edit landing while the first patch is on the wire must keep the
	// draft dirty and go out in a second patch of its own.
	api.setOrderInfoFn = func(context.Context, uuid.UUID, model.OrderInfosPatch) error {
		api.setOrderInfoFn = nil
		mustSet(t, e.SetFetcher("Wilhelm"))
		return nil
	}

	mustSet(t, e.SetOrderer("Maxine"))
	clock.Advance(QuietPeriod)

	if infos, _, _, _ := api.calls(); infos != 1 {
		t.Fatalf("infos = %d, want 1 after the first quiet period", infos)
	}
	if !e.Dirty() {
		t.Fatal("draft must stay dirty while an unsent mid-flight edit exists")
	}

	clock.Advance(QuietPeriod)
	if infos, _, _, _ := api.calls(); infos != 2 {
		t.Fatalf("infos = %d, want 2: the mid-flight edit owes a dispatch", infos)
	}
	if api.infos[1].Fetcher != "Wilhelm" || api.infos[1].Orderer != "Maxine" {
		t.Errorf("second patch = %+v, want the mid-flight fetcher value", api.infos[1])
	}
	if refreshed != 2 {
		t.Errorf("onUpdated calls = %d, want one per acknowledged patch", refreshed)
	}
	if e.Dirty() {
		t.Error("dirty flag not cleared after the second acknowledged patch")
	}

	clock.Advance(5 * QuietPeriod)
	if infos, _, _, _ := api.calls(); infos != 2 {
		t.Fatal("no further dispatch may follow once the draft is settled")
	}
}

func TestInfoFrozenOncePastOpen(t *testing.T) {
	order := infoOrder()
	order.State = enum.OrderStateLocked
	e, api, _, _ := newInfoHarness(t, order, nil)

	if err := e.SetOrderer("Maxine"); !errors.Is(err, ErrFieldReadOnly) {
		t.Fatalf("SetOrderer in LOCKED = %v, want ErrFieldReadOnly", err)
	}
	if infos, _, _, _ := api.calls(); infos != 0 {
		t.Fatal("denied writes must be rejected without a network call")
	}
}

func TestInfoDefaultSeeding(t *testing.T) {
	order := infoOrder()
	order.Infos.OrderClosingTime = ""
	order.Infos.MoneyCollectionType = ""
	e, _, _, _ := newInfoHarness(t, order, nil)

	f := e.Fields()
	if f.ClosingTime != DefaultClosingTime {
		t.Errorf("closing time = %q, want default %q", f.ClosingTime, DefaultClosingTime)
	}
	if f.MoneyCollectionType != enum.MoneyCollectionCash {
		t.Errorf("collection type = %q, want CASH default", f.MoneyCollectionType)
	}
}
