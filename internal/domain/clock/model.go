package clock

import (
	"github.com/flexprice/clockwork/internal/types"
)

// SimulatedClock is a remote logical clock. FrozenTime never decreases.
type SimulatedClock struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	FrozenTime int64             `json:"frozen_time"`
	Status     types.ClockStatus `json:"status"`
	Created    int64             `json:"created"`
}

// IsSettledAt reports whether the platform finished processing up to target
func (c *SimulatedClock) IsSettledAt(target int64) bool {
	return c.Status == types.ClockStatusReady && c.FrozenTime >= target
}
