package service

import (
	"fmt"

	"github.com/flexprice/clockwork/internal/domain/customer"
	"github.com/flexprice/clockwork/internal/domain/subscription"
	"github.com/flexprice/clockwork/internal/interfaces"
	"github.com/flexprice/clockwork/internal/testutil"
	"github.com/flexprice/clockwork/internal/types"
)

func testParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	return testParamsWith(s, s.GetPlatform())
}

func testParamsWith(s *testutil.BaseServiceTestSuite, platform interfaces.BillingPlatform) ServiceParams {
	return NewServiceParams(s.GetLogger(), s.GetConfig(), platform, s.GetMetrics(), nil)
}

type seededEntity struct {
	ClockID        string
	EntityID       string
	SubscriptionID string
}

var seedCounter int

// seedEntity creates a clock at the baseline, a customer paying with token and
// a monthly subscription. A nil anchor charges the first period immediately.
func seedEntity(s *testutil.BaseServiceTestSuite, token string, anchor *int64) seededEntity {
	ctx := s.GetContext()
	p := s.GetPlatform()
	seedCounter++

	c, err := p.Clocks().Create(ctx, types.BaselineStart, fmt.Sprintf("clock_seed_%d", seedCounter))
	s.Require().NoError(err)

	e, err := p.Customers().Create(ctx, &customer.CreateParams{
		Email:   fmt.Sprintf("seed%d@actual.com", seedCounter),
		Name:    "Seeded Entity",
		ClockID: c.ID,
	})
	s.Require().NoError(err)

	useCard(s, e.ID, token)

	sub, err := p.Subscriptions().Create(ctx, &subscription.CreateParams{
		EntityID:      e.ID,
		PriceRef:      testutil.MonthlyPriceID,
		BillingAnchor: anchor,
	})
	s.Require().NoError(err)

	return seededEntity{ClockID: c.ID, EntityID: e.ID, SubscriptionID: sub.ID}
}

// useCard attaches a new card made from token and makes it the default
func useCard(s *testutil.BaseServiceTestSuite, entityID, token string) {
	ctx := s.GetContext()
	p := s.GetPlatform()

	pm, err := p.PaymentMethods().CreateFromToken(ctx, token)
	s.Require().NoError(err)
	s.Require().NoError(p.PaymentMethods().Attach(ctx, pm.ID, entityID))
	s.Require().NoError(p.PaymentMethods().SetDefault(ctx, entityID, pm.ID))
}
