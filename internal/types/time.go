package types

import "time"

const (
	DaySeconds   int64 = 24 * 3600
	MonthSeconds int64 = 30 * DaySeconds
	YearSeconds  int64 = 365 * DaySeconds

	// CycleEpsilon is how far past a cycle boundary the clock is moved so the
	// platform has already rolled the period over.
	CycleEpsilon int64 = 60

	// BaselineStart is 2025-01-01T00:00:00Z, the default frozen time for new clocks
	BaselineStart int64 = 1735689600
)

func ParseTime(t string) (time.Time, error) {
	return time.Parse(time.RFC3339, t)
}

func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// FormatUnix renders a unix timestamp as an RFC3339 UTC string for logs
func FormatUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

// DurationSeconds converts a duration to whole seconds, rounding down
func DurationSeconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
