package types

// ClockStatus is the processing state the platform reports for a simulated clock
type ClockStatus string

const (
	ClockStatusAdvancing       ClockStatus = "advancing"
	ClockStatusReady           ClockStatus = "ready"
	ClockStatusInternalFailure ClockStatus = "internal_failure"
)

func (s ClockStatus) String() string {
	return string(s)
}
