package service

import (
	"testing"

	"github.com/flexprice/clockwork/internal/domain/customer"
	"github.com/flexprice/clockwork/internal/domain/subscription"
	"github.com/flexprice/clockwork/internal/testutil"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/stretchr/testify/suite"
)

type CleanupServiceSuite struct {
	testutil.BaseServiceTestSuite
}

func TestCleanupService(t *testing.T) {
	suite.Run(t, new(CleanupServiceSuite))
}

func (s *CleanupServiceSuite) service() CleanupService {
	return NewCleanupService(testParams(&s.BaseServiceTestSuite))
}

func (s *CleanupServiceSuite) customer(email, clockID string) *customer.BillingEntity {
	e, err := s.GetPlatform().Customers().Create(s.GetContext(), &customer.CreateParams{
		Email:   email,
		Name:    email,
		ClockID: clockID,
	})
	s.Require().NoError(err)
	return e
}

func (s *CleanupServiceSuite) TestRemovesGeneratedData() {
	ctx := s.GetContext()
	p := s.GetPlatform()

	// a generated entity with a live subscription on a run clock
	seeded := seedEntity(&s.BaseServiceTestSuite, testutil.TokenSuccess, nil)
	s.customer("active1@actual.com", "")
	s.customer("upgrade3@actual.com", "")
	s.customer("test7@actual.com", "")
	kept := s.customer("someone@actual.com", "")
	other := s.customer("active1@elsewhere.com", "")

	_, err := p.Clocks().Create(ctx, types.BaselineStart, "learn_tc_old")
	s.Require().NoError(err)
	unrelated, err := p.Clocks().Create(ctx, types.BaselineStart, "manual clock")
	s.Require().NoError(err)

	s.GetConfig().Stripe.PriceID = ""
	_, err = NewBootstrapService(testParams(&s.BaseServiceTestSuite)).ResolvePrices(ctx)
	s.Require().NoError(err)

	result, err := s.service().Cleanup(ctx)
	s.Require().NoError(err)
	// seed{n}@ does not match a generated pattern, so only its clock goes
	s.Equal(3, result.Customers)
	s.Equal(2, result.Clocks)
	s.Equal(2, result.Prices)
	s.Equal(1, result.Products)
	s.Zero(result.Failed)

	remaining, err := p.Customers().List(ctx)
	s.Require().NoError(err)
	ids := make([]string, 0, len(remaining))
	for _, e := range remaining {
		ids = append(ids, e.ID)
	}
	s.ElementsMatch([]string{kept.ID, other.ID}, ids)

	clocks, err := p.ClockLister().List(ctx)
	s.Require().NoError(err)
	s.Require().Len(clocks, 1)
	s.Equal(unrelated.ID, clocks[0].ID)

	sub, err := p.Subscriptions().Retrieve(ctx, seeded.SubscriptionID)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, sub.Status)
}

func (s *CleanupServiceSuite) TestCancelsSubscriptionsBeforeDeletingCustomers() {
	ctx := s.GetContext()
	e := s.customer("cancel4@actual.com", "")
	useCard(&s.BaseServiceTestSuite, e.ID, testutil.TokenSuccess)
	_, err := s.GetPlatform().Subscriptions().Create(ctx, &subscription.CreateParams{EntityID: e.ID, PriceRef: testutil.MonthlyPriceID})
	s.Require().NoError(err)

	result, err := s.service().Cleanup(ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Subscriptions)
	s.Equal(1, result.Customers)
	s.Equal(1, s.GetPlatform().Calls(testutil.OpCancel))
}

func (s *CleanupServiceSuite) TestKeepsGoingAfterFailures() {
	ctx := s.GetContext()
	s.customer("active1@actual.com", "")
	s.customer("active2@actual.com", "")
	s.GetPlatform().Inject(testutil.OpDeleteCustomer, testutil.ValidationError("customer is locked"))

	result, err := s.service().Cleanup(ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Customers)
	s.Equal(1, result.Failed)
}
