package overlay

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Visibility is the overlay presentation state.
//
// The state machine has two states:
//
//	┌──────────┐      Show       ┌──────────┐
//	│  Hidden  │ ───────────────▶│  Visible │
//	└──────────┘                 └──────────┘
//	     ▲                            │
//	     │  Hide / auto-hide timer    │
//	     └────────────────────────────┘
//
// Hidden is the initial state. Show while already Visible re-arms the
// auto-hide countdown.
type Visibility int

const (
	Hidden Visibility = iota
	Visible
)

// String returns the state name for logging.
func (v Visibility) String() string {
	switch v {
	case Hidden:
		return "hidden"
	case Visible:
		return "visible"
	default:
		return "unknown"
	}
}

// VisibilityController drives whether the overlay is shown, with an optional
// auto-hide countdown. A zero autoHide duration means "visible until
// explicitly hidden". At most one hide timer is pending at any time: every
// Show cancels the previous countdown and starts a fresh one.
type VisibilityController struct {
	clock    clockwork.Clock
	autoHide time.Duration

	mu         sync.Mutex
	state      Visibility
	generation uint64
	hideCancel chan struct{}
	closed     bool
}

// NewVisibilityController creates a controller in the Hidden state.
func NewVisibilityController(clock clockwork.Clock, autoHide time.Duration) *VisibilityController {
	return &VisibilityController{
		clock:    clock,
		autoHide: autoHide,
	}
}

// Show transitions to Visible and re-arms the auto-hide countdown. Calling
// Show while already Visible resets the countdown; repeated calls never
// stack timers.
func (c *VisibilityController) Show() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.state = Visible
	c.cancelHideLocked()

	if c.autoHide <= 0 {
		return
	}

	timer := c.clock.NewTimer(c.autoHide)
	cancel := make(chan struct{})
	c.hideCancel = cancel
	gen := c.generation

	go func() {
		select {
		case <-timer.Chan():
			c.hideFromTimer(gen)
		case <-cancel:
			stopAndDrainTimer(timer)
		}
	}()
}

// Hide transitions to Hidden immediately and cancels any pending auto-hide
// countdown. Safe to call in any state.
func (c *VisibilityController) Hide() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.state = Hidden
	c.cancelHideLocked()
}

// State returns the current visibility state.
func (c *VisibilityController) State() Visibility {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close cancels any pending auto-hide countdown and freezes the controller:
// later Show and Hide calls are no-ops, so a straggler frame handled during
// teardown cannot re-arm a timer or flip the state. Idempotent.
func (c *VisibilityController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancelHideLocked()
}

// hideFromTimer applies an expired countdown. The generation check discards
// a timer that fired while a newer Show or Hide was re-arming state: only
// the most recent countdown may hide the overlay.
func (c *VisibilityController) hideFromTimer(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}
	log.Debug().Dur("auto_hide", c.autoHide).Msg("auto-hide timer fired")
	c.state = Hidden
	c.cancelHideLocked()
}

// cancelHideLocked invalidates the pending countdown, if any. Bumping the
// generation also invalidates a timer that has already fired but not yet
// taken the lock.
func (c *VisibilityController) cancelHideLocked() {
	c.generation++
	if c.hideCancel != nil {
		close(c.hideCancel)
		c.hideCancel = nil
	}
}
