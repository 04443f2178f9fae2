package decay

import "fmt"

// Tick is the simulation's logical time unit. The core understands no other
// clock; the host decides how wall time maps onto ticks.
type Tick uint64

// Clock tracks the current logical tick. It only ever moves forward.
type Clock struct {
	current Tick
}

// Now returns the current tick.
func (c *Clock) Now() Tick {
	if c == nil {
		return 0
	}
	return c.current
}

// Advance moves the clock to tick. Re-advancing to the current tick is
// allowed so a host may re-drive the same logical step; moving backward is
// not.
func (c *Clock) Advance(tick Tick) error {
	if tick < c.current {
		return fmt.Errorf("%w: tick %d is behind current tick %d", ErrClockRegression, tick, c.current)
	}
	c.current = tick
	return nil
}
