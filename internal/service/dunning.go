package service

import (
	"context"
	"time"

	"github.com/flexprice/clockwork/internal/domain/invoice"
	"github.com/flexprice/clockwork/internal/domain/subscription"
	"github.com/flexprice/clockwork/internal/types"
)

// DunningAdvancer walks a subscription's unpaid invoice through the
// platform's scheduled payment retries.
type DunningAdvancer interface {
	// AdvanceThroughRetries runs at most maxRounds clock advances. Ending
	// without a paid invoice is reported as lingering, not as an error.
	AdvanceThroughRetries(ctx context.Context, clockID, subscriptionID string, buffer time.Duration, maxRounds int) (*DunningResult, error)
}

type DunningResult struct {
	Outcome            types.DunningOutcome
	Rounds             int
	Invoice            *invoice.Invoice
	SubscriptionStatus types.SubscriptionStatus
}

type dunningAdvancer struct {
	ServiceParams
	advancer ClockAdvancer
}

func NewDunningAdvancer(params ServiceParams, advancer ClockAdvancer) DunningAdvancer {
	return &dunningAdvancer{
		ServiceParams: params,
		advancer:      advancer,
	}
}

func (s *dunningAdvancer) AdvanceThroughRetries(
	ctx context.Context,
	clockID, subscriptionID string,
	buffer time.Duration,
	maxRounds int,
) (*DunningResult, error) {
	result := &DunningResult{}

	for result.Rounds < maxRounds {
		sub, err := s.snapshot(ctx, subscriptionID)
		if err != nil {
			return result, err
		}
		if done := s.observe(result, sub); done {
			return result, nil
		}

		target, step, err := s.nextTarget(ctx, clockID, result.Invoice, buffer)
		if err != nil {
			return result, err
		}
		if _, err := s.advancer.Advance(ctx, clockID, target); err != nil {
			return result, err
		}

		result.Rounds++
		s.Metrics.DunningRound(step)
		s.Logger.Debugw("dunning round",
			"subscription_id", subscriptionID,
			"invoice_id", result.Invoice.ID,
			"round", result.Rounds,
			"step", step,
			"attempt_count", result.Invoice.AttemptCount,
		)
	}

	// One last read so a charge made by the final advance is seen
	sub, err := s.snapshot(ctx, subscriptionID)
	if err != nil {
		return result, err
	}
	if done := s.observe(result, sub); !done {
		result.Outcome = types.DunningOutcomeLingering
	}

	s.Logger.Infow("dunning finished",
		"subscription_id", subscriptionID,
		"outcome", result.Outcome,
		"rounds", result.Rounds,
		"subscription_status", result.SubscriptionStatus,
	)
	return result, nil
}

// observe records the snapshot and reports whether dunning has nothing left to do
func (s *dunningAdvancer) observe(result *DunningResult, sub *subscription.Subscription) bool {
	result.SubscriptionStatus = sub.Status
	result.Invoice = sub.LatestInvoice

	switch {
	case sub.LatestInvoice == nil:
		result.Outcome = types.DunningOutcomeNoInvoice
		return true
	case sub.LatestInvoice.IsPaid():
		result.Outcome = types.DunningOutcomeRecovered
		return true
	}
	return false
}

func (s *dunningAdvancer) nextTarget(ctx context.Context, clockID string, inv *invoice.Invoice, buffer time.Duration) (int64, string, error) {
	if inv.NextPaymentAttempt != nil {
		return *inv.NextPaymentAttempt + types.DurationSeconds(buffer), "scheduled_retry", nil
	}

	c, err := s.advancer.Current(ctx, clockID)
	if err != nil {
		return 0, "", err
	}
	return c.FrozenTime + types.DurationSeconds(s.Config.Dunning.FallbackStep), "fallback", nil
}

func (s *dunningAdvancer) snapshot(ctx context.Context, subscriptionID string) (*subscription.Subscription, error) {
	var sub *subscription.Subscription
	err := s.remote(ctx, func() error {
		var err error
		sub, err = s.Platform.Subscriptions().Retrieve(ctx, subscriptionID)
		return err
	})
	return sub, err
}
