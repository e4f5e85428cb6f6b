package editor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mealtime/api/internal/model"
)

// --- fake clock ---

// fakeTimer is a timer scheduled on the fakeClock.
type fakeTimer struct {
	clock   *fakeClock
	when    time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	live := !t.stopped && !t.fired
	t.stopped = true
	return live
}

// fakeClock drives the debounce deterministically. Advance fires every due
// timer synchronously, so a dispatch is fully settled when Advance returns.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func newFakeClock() *fakeClock { return &fakeClock{} }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, when: c.now + d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.when <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].when < due[j].when })
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// --- mock OrderAPI (function fields, override what the test cares about) ---

type mockOrderAPI struct {
	setOrderInfoFn   func(ctx context.Context, orderID uuid.UUID, patch model.OrderInfosPatch) error
	createPositionFn func(ctx context.Context, orderID uuid.UUID, patch model.OrderPositionPatch) (*model.OrderPosition, error)
	updatePositionFn func(ctx context.Context, orderID, positionID uuid.UUID, patch model.OrderPositionPatch) error
	deletePositionFn func(ctx context.Context, orderID, positionID uuid.UUID) error

	mu      sync.Mutex
	infos   []model.OrderInfosPatch
	creates []model.OrderPositionPatch
	updates []model.OrderPositionPatch
	deletes []uuid.UUID
}

func (m *mockOrderAPI) SetOrderInfo(ctx context.Context, orderID uuid.UUID, patch model.OrderInfosPatch) error {
	m.mu.Lock()
	m.infos = append(m.infos, patch)
	m.mu.Unlock()
	if m.setOrderInfoFn != nil {
		return m.setOrderInfoFn(ctx, orderID, patch)
	}
	return nil
}

func (m *mockOrderAPI) CreatePosition(ctx context.Context, orderID uuid.UUID, patch model.OrderPositionPatch) (*model.OrderPosition, error) {
	m.mu.Lock()
	m.creates = append(m.creates, patch)
	m.mu.Unlock()
	if m.createPositionFn != nil {
		return m.createPositionFn(ctx, orderID, patch)
	}
	return &model.OrderPosition{ID: uuid.New()}, nil
}

func (m *mockOrderAPI) UpdatePosition(ctx context.Context, orderID, positionID uuid.UUID, patch model.OrderPositionPatch) error {
	m.mu.Lock()
	m.updates = append(m.updates, patch)
	m.mu.Unlock()
	if m.updatePositionFn != nil {
		return m.updatePositionFn(ctx, orderID, positionID, patch)
	}
	return nil
}

func (m *mockOrderAPI) DeletePosition(ctx context.Context, orderID, positionID uuid.UUID) error {
	m.mu.Lock()
	m.deletes = append(m.deletes, positionID)
	m.mu.Unlock()
	if m.deletePositionFn != nil {
		return m.deletePositionFn(ctx, orderID, positionID)
	}
	return nil
}

func (m *mockOrderAPI) calls() (infos, creates, updates, deletes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.infos), len(m.creates), len(m.updates), len(m.deletes)
}

// --- recording notifier ---

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []string
	errs      []error
}

func (n *recordingNotifier) Error(summary string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, summary)
	n.errs = append(n.errs, err)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.summaries)
}
