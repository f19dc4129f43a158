package service

import (
	"testing"

	"github.com/flexprice/clockwork/internal/testutil"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type DunningAdvancerSuite struct {
	testutil.BaseServiceTestSuite
	advancer ClockAdvancer
	dunning  DunningAdvancer
}

func TestDunningAdvancer(t *testing.T) {
	suite.Run(t, new(DunningAdvancerSuite))
}

func (s *DunningAdvancerSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := testParams(&s.BaseServiceTestSuite)
	s.advancer = NewClockAdvancer(params)
	s.dunning = NewDunningAdvancer(params, s.advancer)
}

// failNextCycle switches the entity to a declining card and crosses the
// first renewal so the subscription goes past due.
func (s *DunningAdvancerSuite) failNextCycle(e seededEntity) {
	useCard(&s.BaseServiceTestSuite, e.EntityID, testutil.TokenDecline)
	target := NextCycleAfter(types.BaselineStart, 1, types.BaselineStart, types.MonthSeconds)
	_, err := s.advancer.Advance(s.GetContext(), e.ClockID, target)
	s.Require().NoError(err)

	sub, err := s.GetPlatform().Subscriptions().Retrieve(s.GetContext(), e.SubscriptionID)
	s.Require().NoError(err)
	s.Require().Equal(types.SubscriptionStatusPastDue, sub.Status)
}

func (s *DunningAdvancerSuite) TestRecoversOnScheduledRetry() {
	e := seedEntity(&s.BaseServiceTestSuite, testutil.TokenSuccess, nil)
	s.failNextCycle(e)
	useCard(&s.BaseServiceTestSuite, e.EntityID, testutil.TokenSuccess)

	result, err := s.dunning.AdvanceThroughRetries(s.GetContext(), e.ClockID, e.SubscriptionID, s.GetConfig().Dunning.Buffer, 10)
	s.Require().NoError(err)
	s.Equal(types.DunningOutcomeRecovered, result.Outcome)
	s.Equal(1, result.Rounds)
	s.True(result.Invoice.IsPaid())
	s.Equal(types.SubscriptionStatusActive, result.SubscriptionStatus)
}

func (s *DunningAdvancerSuite) TestBoundedWhenNeverPaid() {
	testCases := []struct {
		name      string
		maxRounds int
	}{
		{name: "default rounds", maxRounds: 10},
		{name: "two rounds", maxRounds: 2},
		{name: "zero rounds", maxRounds: 0},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			e := seedEntity(&s.BaseServiceTestSuite, testutil.TokenSuccess, nil)
			s.failNextCycle(e)

			result, err := s.dunning.AdvanceThroughRetries(s.GetContext(), e.ClockID, e.SubscriptionID, s.GetConfig().Dunning.Buffer, tc.maxRounds)
			s.Require().NoError(err)
			s.Equal(types.DunningOutcomeLingering, result.Outcome)
			s.Equal(tc.maxRounds, result.Rounds)
			s.False(result.Invoice.IsPaid())
			s.Equal(types.SubscriptionStatusPastDue, result.SubscriptionStatus)
		})
	}
}

func (s *DunningAdvancerSuite) TestFallsBackToDailySteps() {
	e := seedEntity(&s.BaseServiceTestSuite, testutil.TokenSuccess, nil)
	s.failNextCycle(e)
	before, err := s.advancer.Current(s.GetContext(), e.ClockID)
	s.Require().NoError(err)

	_, err = s.dunning.AdvanceThroughRetries(s.GetContext(), e.ClockID, e.SubscriptionID, s.GetConfig().Dunning.Buffer, 10)
	s.Require().NoError(err)

	after, err := s.advancer.Current(s.GetContext(), e.ClockID)
	s.Require().NoError(err)

	// three scheduled retries one day apart, then seven one-day fallbacks
	expected := before.FrozenTime + 10*types.DaySeconds
	s.Equal(expected, after.FrozenTime)
}

func (s *DunningAdvancerSuite) TestStopsWithoutInvoice() {
	anchor := lo.ToPtr(types.BaselineStart + types.DaySeconds)
	e := seedEntity(&s.BaseServiceTestSuite, testutil.TokenSuccess, anchor)

	result, err := s.dunning.AdvanceThroughRetries(s.GetContext(), e.ClockID, e.SubscriptionID, s.GetConfig().Dunning.Buffer, 10)
	s.Require().NoError(err)
	s.Equal(types.DunningOutcomeNoInvoice, result.Outcome)
	s.Equal(0, result.Rounds)
	s.Nil(result.Invoice)
}

func (s *DunningAdvancerSuite) TestPropagatesAdvanceFailure() {
	e := seedEntity(&s.BaseServiceTestSuite, testutil.TokenSuccess, nil)
	s.failNextCycle(e)
	s.GetPlatform().Inject(testutil.OpRequestAdvance, testutil.ValidationError("clock is locked"))

	result, err := s.dunning.AdvanceThroughRetries(s.GetContext(), e.ClockID, e.SubscriptionID, s.GetConfig().Dunning.Buffer, 10)
	s.Require().Error(err)
	s.Equal(0, result.Rounds)
}
