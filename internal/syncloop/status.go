package syncloop

import (
	"time"

	"cavacolor/internal/palette"
	"cavacolor/internal/playback"
)

// Status is a point-in-time view of the loop.
type Status struct {
	CycleState
	LastError       string
	LastPalette     palette.Palette
	LastObservation *playback.Observation
	LastApplied     time.Time
}

// Snapshot returns a copy of the cycle state.
func (c *Coordinator) Snapshot() CycleState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Status returns the latest loop information.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	summary := Status{CycleState: c.state, LastPalette: c.lastPalette, LastApplied: c.lastApplied}
	if c.lastErr != nil {
		summary.LastError = c.lastErr.Error()
	}
	if c.lastObs != nil {
		copy := *c.lastObs
		summary.LastObservation = &copy
	}
	return summary
}

func (c *Coordinator) setState(state State) {
	c.mu.Lock()
	c.state.State = state
	c.mu.Unlock()
}

func (c *Coordinator) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}
