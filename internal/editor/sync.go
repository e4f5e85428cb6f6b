package editor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mealtime/api/internal/model"
)

// QuietPeriod is the idle time after the last qualifying edit before a draft
// is dispatched to the order service.
const QuietPeriod = 2000 * time.Millisecond

// OrderAPI is the remote order service surface consumed by the editors.
// Satisfied by *client.OrderClient; narrow interface for testability.
type OrderAPI interface {
	SetOrderInfo(ctx context.Context, orderID uuid.UUID, patch model.OrderInfosPatch) error
	CreatePosition(ctx context.Context, orderID uuid.UUID, patch model.OrderPositionPatch) (*model.OrderPosition, error)
	UpdatePosition(ctx context.Context, orderID, positionID uuid.UUID, patch model.OrderPositionPatch) error
	DeletePosition(ctx context.Context, orderID, positionID uuid.UUID) error
}

// Notifier is the shared notification surface sync failures are raised
// through. Field-level validation errors never reach it.
type Notifier interface {
	Error(summary string, err error)
}

// DraftState is the three-valued dirty/validity state of a draft.
type DraftState int

const (
	// DraftPristine: no edits since the last seed or successful patch.
	DraftPristine DraftState = iota
	// DraftDirtyInvalid: unsent edits exist but the draft fails validation.
	DraftDirtyInvalid
	// DraftDirtyValid: unsent edits exist and the draft may be dispatched.
	DraftDirtyValid
)

// syncChannel implements the debounced, at-most-one-in-flight dispatch
// protocol shared by both editors. The owning editor's mutex must be held
// for every method call; the network call itself happens outside the lock.
type syncChannel struct {
	clock Clock
	quiet time.Duration

	timer    Timer
	gen      uint64
	inflight bool
	deferred bool
}

// bump (re)starts the quiet-period timer, superseding any scheduled cycle.
// fire runs on the timer goroutine once the period elapses without another
// bump; it receives the cycle's generation so stale wakeups can bail out.
func (c *syncChannel) bump(fire func(gen uint64)) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.quiet, func() { fire(gen) })
}

// cancel stops any scheduled cycle without starting a new one.
func (c *syncChannel) cancel() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

// current reports whether gen is still the latest scheduled cycle.
func (c *syncChannel) current(gen uint64) bool {
	return gen == c.gen
}

// begin marks a dispatch as started. It returns false when another patch is
// already in flight; the elapsed cycle is then deferred until that patch
// completes, keeping at most one send outstanding per entity.
func (c *syncChannel) begin() bool {
	if c.inflight {
		c.deferred = true
		return false
	}
	c.inflight = true
	return true
}

// finish marks the in-flight dispatch as done. A cycle that elapsed during
// the flight gets a fresh quiet period rather than firing immediately.
func (c *syncChannel) finish(fire func(gen uint64)) {
	c.inflight = false
	if c.deferred {
		c.deferred = false
		c.bump(fire)
	}
}
