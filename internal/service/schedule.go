package service

import (
	"github.com/flexprice/clockwork/internal/types"
)

// NextCycleAfter returns the timestamp just past billing cycle index counted
// from anchor. When that boundary already lies at or before current, the first
// later boundary is returned instead, so the result is always after current
// and the implied cycle index never drops below index.
func NextCycleAfter(anchor, index, current, interval int64) int64 {
	desired := anchor + index*interval + types.CycleEpsilon
	if desired > current {
		return desired
	}
	if interval <= 0 {
		return current + 1
	}

	k := floorDiv(current-anchor-types.CycleEpsilon, interval) + 1
	if k < index {
		k = index
	}
	return anchor + k*interval + types.CycleEpsilon
}

// CycleIndexAt is the cycle index whose boundary (plus epsilon) is the last
// one at or before ts.
func CycleIndexAt(anchor, ts, interval int64) int64 {
	if interval <= 0 {
		return 0
	}
	return floorDiv(ts-anchor-types.CycleEpsilon, interval)
}

// floorDiv rounds toward negative infinity, unlike Go's truncating division
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
