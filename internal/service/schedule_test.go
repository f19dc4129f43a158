package service

import (
	"testing"

	"github.com/flexprice/clockwork/internal/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestNextCycleAfter(t *testing.T) {
	const (
		anchor   = types.BaselineStart
		interval = types.MonthSeconds
	)
	nominal := anchor + 3*interval + types.CycleEpsilon

	tests := []struct {
		name     string
		index    int64
		current  int64
		interval int64
		expected int64
	}{
		{
			name:     "nominal boundary in the future",
			index:    3,
			current:  anchor,
			interval: interval,
			expected: nominal,
		},
		{
			name:     "clock ten days past the nominal boundary",
			index:    3,
			current:  nominal + 10*types.DaySeconds,
			interval: interval,
			expected: anchor + 4*interval + types.CycleEpsilon,
		},
		{
			name:     "clock exactly on the nominal boundary",
			index:    3,
			current:  nominal,
			interval: interval,
			expected: anchor + 4*interval + types.CycleEpsilon,
		},
		{
			name:     "index zero just after creation",
			index:    0,
			current:  anchor + 1,
			interval: interval,
			expected: anchor + types.CycleEpsilon,
		},
		{
			name:     "clock several cycles ahead",
			index:    1,
			current:  anchor + 5*interval + 2*types.DaySeconds,
			interval: interval,
			expected: anchor + 6*interval + types.CycleEpsilon,
		},
		{
			name:     "clock before the anchor",
			index:    0,
			current:  anchor - types.DaySeconds,
			interval: interval,
			expected: anchor + types.CycleEpsilon,
		},
		{
			name:     "zero interval falls back to one second ahead",
			index:    2,
			current:  anchor + 500,
			interval: 0,
			expected: anchor + 501,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextCycleAfter(anchor, tt.index, tt.current, tt.interval)
			assert.Equal(t, tt.expected, got)
			assert.Greater(t, got, tt.current)
		})
	}
}

func TestCycleIndexAt(t *testing.T) {
	anchor := types.BaselineStart
	interval := types.MonthSeconds

	assert.Equal(t, int64(3), CycleIndexAt(anchor, anchor+3*interval+types.CycleEpsilon, interval))
	assert.Equal(t, int64(2), CycleIndexAt(anchor, anchor+3*interval, interval))
	assert.Equal(t, int64(-1), CycleIndexAt(anchor, anchor, interval))
	assert.Equal(t, int64(0), CycleIndexAt(anchor, anchor, 0))
}

func TestNextCycleAfterProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	intervals := gen.OneConstOf(types.DaySeconds, types.MonthSeconds, types.YearSeconds)

	properties.Property("result is always after current", prop.ForAll(
		func(anchor, index, offset, interval int64) bool {
			current := anchor + offset
			return NextCycleAfter(anchor, index, current, interval) > current
		},
		gen.Int64Range(types.BaselineStart-types.YearSeconds, types.BaselineStart+types.YearSeconds),
		gen.Int64Range(0, 60),
		gen.Int64Range(-types.YearSeconds, 10*types.YearSeconds),
		intervals,
	))

	properties.Property("implied cycle index never moves backward", prop.ForAll(
		func(anchor, index, offset, interval int64) bool {
			current := anchor + offset
			got := NextCycleAfter(anchor, index, current, interval)
			return CycleIndexAt(anchor, got, interval) >= index
		},
		gen.Int64Range(types.BaselineStart-types.YearSeconds, types.BaselineStart+types.YearSeconds),
		gen.Int64Range(0, 60),
		gen.Int64Range(-types.YearSeconds, 10*types.YearSeconds),
		intervals,
	))

	properties.Property("result lands exactly on a cycle boundary", prop.ForAll(
		func(anchor, index, offset, interval int64) bool {
			got := NextCycleAfter(anchor, index, anchor+offset, interval)
			return (got-anchor-types.CycleEpsilon)%interval == 0
		},
		gen.Int64Range(types.BaselineStart-types.YearSeconds, types.BaselineStart+types.YearSeconds),
		gen.Int64Range(0, 60),
		gen.Int64Range(-types.YearSeconds, 10*types.YearSeconds),
		intervals,
	))

	properties.TestingRun(t)
}
