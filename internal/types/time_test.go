package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatUnix(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected string
	}{
		{name: "baseline start", input: BaselineStart, expected: "2025-01-01T00:00:00Z"},
		{name: "one cycle later", input: BaselineStart + MonthSeconds, expected: "2025-01-31T00:00:00Z"},
		{name: "epoch", input: 0, expected: "1970-01-01T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatUnix(tt.input))
		})
	}
}

func TestDurationSeconds(t *testing.T) {
	assert.Equal(t, int64(60), DurationSeconds(time.Minute))
	assert.Equal(t, int64(0), DurationSeconds(500*time.Millisecond))
	assert.Equal(t, DaySeconds, DurationSeconds(24*time.Hour))
}

func TestBillingIntervalSeconds(t *testing.T) {
	assert.Equal(t, int64(2592000), BillingIntervalMonth.Seconds())
	assert.Equal(t, YearSeconds, BillingIntervalYear.Seconds())
	assert.Error(t, BillingInterval("week").Validate())
	assert.NoError(t, BillingIntervalYear.Validate())
}

func TestInvoiceStatusIsPayable(t *testing.T) {
	assert.True(t, InvoiceStatusOpen.IsPayable())
	assert.True(t, InvoiceStatusDraft.IsPayable())
	assert.False(t, InvoiceStatusPaid.IsPayable())
	assert.False(t, InvoiceStatusVoid.IsPayable())
	assert.False(t, InvoiceStatusUncollectible.IsPayable())
}
