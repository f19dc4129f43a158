package types

import (
	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/samber/lo"
)

// BillingInterval is the recurrence of a price
type BillingInterval string

const (
	BillingIntervalMonth BillingInterval = "month"
	BillingIntervalYear  BillingInterval = "year"
)

func (b BillingInterval) String() string {
	return string(b)
}

// Seconds returns the fixed cycle length used when scheduling clock advances.
// A month is always 30 days; the platform's calendar months drift against it
// and the scheduler corrects for that drift.
func (b BillingInterval) Seconds() int64 {
	switch b {
	case BillingIntervalYear:
		return YearSeconds
	default:
		return MonthSeconds
	}
}

func (b BillingInterval) Validate() error {
	allowed := []BillingInterval{BillingIntervalMonth, BillingIntervalYear}
	if !lo.Contains(allowed, b) {
		return ierr.NewError("invalid billing interval").
			WithHint("Billing interval must be month or year").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
