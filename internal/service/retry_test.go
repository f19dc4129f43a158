package service

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/clockwork/internal/config"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func schedule(p retryPolicy) []time.Duration {
	b := p.backOff(context.Background())
	out := []time.Duration{}
	for i := 0; i <= p.MaxAttempts; i++ {
		next := b.NextBackOff()
		out = append(out, next)
		if next == backoff.Stop {
			break
		}
	}
	return out
}

func TestRetryPolicySchedule(t *testing.T) {
	params := ServiceParams{Config: config.GetDefaultConfig()}

	testCases := []struct {
		name     string
		policy   retryPolicy
		expected []time.Duration
	}{
		{
			name:   "advance",
			policy: params.advancePolicy(),
			expected: []time.Duration{
				500 * time.Millisecond,
				750 * time.Millisecond,
				1125 * time.Millisecond,
				1687500 * time.Microsecond,
				2531250 * time.Microsecond,
				3796875 * time.Microsecond,
				5 * time.Second,
				backoff.Stop,
			},
		},
		{
			name:   "cancel",
			policy: params.cancelPolicy(),
			expected: append(append([]time.Duration{
				500 * time.Millisecond,
				750 * time.Millisecond,
				1125 * time.Millisecond,
				1687500 * time.Microsecond,
			}, lo.Times(15, func(int) time.Duration { return 2 * time.Second })...), backoff.Stop),
		},
		{
			name:     "configured initial interval",
			policy:   retryPolicy{MaxAttempts: 4, Initial: time.Millisecond, Multiplier: 2, Max: 3 * time.Millisecond},
			expected: []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, backoff.Stop},
		},
		{
			name:     "single attempt never waits",
			policy:   retryPolicy{MaxAttempts: 1, Initial: time.Second, Multiplier: 1.5, Max: time.Second},
			expected: []time.Duration{backoff.Stop},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, schedule(tc.policy))
		})
	}
}

func TestRetryPolicyRunStopsOnPermanentError(t *testing.T) {
	policy := retryPolicy{MaxAttempts: 5, Initial: time.Millisecond, Multiplier: 1.5, Max: time.Millisecond}

	attempts, err := policy.run(context.Background(), func() error {
		return permanentUnlessRetryable(assert.AnError)
	}, nil)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, attempts)
}
