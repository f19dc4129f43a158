package stripe

import (
	"context"

	"github.com/flexprice/clockwork/internal/domain/clock"
	"github.com/flexprice/clockwork/internal/idempotency"
	"github.com/flexprice/clockwork/internal/logger"
	"github.com/stripe/stripe-go/v82"
)

// ClockService talks to the test-clock helpers. It never retries or polls.
type ClockService struct {
	client *Client
	logger *logger.Logger
}

var (
	_ clock.Client = (*ClockService)(nil)
	_ clock.Lister = (*ClockService)(nil)
)

func NewClockService(client *Client, logger *logger.Logger) *ClockService {
	return &ClockService{
		client: client,
		logger: logger,
	}
}

func (s *ClockService) Create(ctx context.Context, frozenTime int64, name string) (*clock.SimulatedClock, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	params := &stripe.TestHelpersTestClockCreateParams{
		FrozenTime: stripe.Int64(frozenTime),
		Name:       stripe.String(name),
	}
	params.IdempotencyKey = s.client.idempotencyKey(idempotency.ScopeClock, map[string]any{
		"name":        name,
		"frozen_time": frozenTime,
	})
	tc, err := sc.V1TestHelpersTestClocks.Create(ctx, params)
	if err != nil {
		return nil, classifyError(err, "Failed to create test clock", map[string]any{
			"name":        name,
			"frozen_time": frozenTime,
		})
	}

	s.logger.Debugw("created test clock", "clock_id", tc.ID, "name", name, "frozen_time", frozenTime)
	return toClock(tc), nil
}

func (s *ClockService) Retrieve(ctx context.Context, id string) (*clock.SimulatedClock, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	tc, err := sc.V1TestHelpersTestClocks.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, classifyError(err, "Failed to retrieve test clock", map[string]any{
			"clock_id": id,
		})
	}
	return toClock(tc), nil
}

func (s *ClockService) RequestAdvance(ctx context.Context, id string, target int64) error {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return err
	}

	params := &stripe.TestHelpersTestClockAdvanceParams{
		FrozenTime: stripe.Int64(target),
	}
	if _, err := sc.V1TestHelpersTestClocks.Advance(ctx, id, params); err != nil {
		return classifyError(err, "Failed to request test clock advance", map[string]any{
			"clock_id":    id,
			"target_time": target,
		})
	}
	return nil
}

func (s *ClockService) List(ctx context.Context) ([]*clock.SimulatedClock, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	params := &stripe.TestHelpersTestClockListParams{}
	params.Limit = stripe.Int64(100)

	var clocks []*clock.SimulatedClock
	for tc, err := range sc.V1TestHelpersTestClocks.List(ctx, params) {
		if err != nil {
			return nil, classifyError(err, "Failed to list test clocks", nil)
		}
		clocks = append(clocks, toClock(tc))
	}
	return clocks, nil
}

func (s *ClockService) Delete(ctx context.Context, id string) error {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return err
	}

	if _, err := sc.V1TestHelpersTestClocks.Delete(ctx, id, nil); err != nil {
		return classifyError(err, "Failed to delete test clock", map[string]any{
			"clock_id": id,
		})
	}
	return nil
}
