package observability

import (
	"time"

	"go.uber.org/zap"
)

// TickClock measures decision ticks against a wall-clock budget.
//
// An overrun is reported, never enforced: the tick always runs to completion.
type TickClock struct {
	budget   time.Duration
	logger   *zap.Logger
	now      func() time.Time
	overruns int
	worst    time.Duration
}

// NewTickClock creates a TickClock.
//
// Precondition: budget > 0; logger must not be nil.
func NewTickClock(budget time.Duration, logger *zap.Logger) *TickClock {
	if logger == nil {
		panic("observability.NewTickClock: logger must not be nil")
	}
	return &TickClock{budget: budget, logger: logger, now: time.Now}
}

// Start begins timing the tick at loop. The returned func stops the timer,
// logs a warning when the budget was exceeded and returns the elapsed time.
func (c *TickClock) Start(loop int) func() time.Duration {
	began := c.now()
	return func() time.Duration {
		elapsed := c.now().Sub(began)
		if elapsed > c.worst {
			c.worst = elapsed
		}
		if elapsed > c.budget {
			c.overruns++
			c.logger.Warn("tick exceeded budget",
				zap.Int("loop", loop),
				zap.Duration("elapsed", elapsed),
				zap.Duration("budget", c.budget),
			)
		}
		return elapsed
	}
}

// Overruns returns how many ticks exceeded the budget.
func (c *TickClock) Overruns() int { return c.overruns }

// Worst returns the longest tick observed.
func (c *TickClock) Worst() time.Duration { return c.worst }

// Reset clears the overrun statistics.
func (c *TickClock) Reset() {
	c.overruns = 0
	c.worst = 0
}

// SetClock replaces the time source. Intended for tests.
func (c *TickClock) SetClock(now func() time.Time) { c.now = now }
