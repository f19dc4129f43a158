package service

import (
	"testing"

	"github.com/flexprice/clockwork/internal/testutil"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/stretchr/testify/suite"
)

type BootstrapServiceSuite struct {
	testutil.BaseServiceTestSuite
}

func TestBootstrapService(t *testing.T) {
	suite.Run(t, new(BootstrapServiceSuite))
}

func (s *BootstrapServiceSuite) service() BootstrapService {
	return NewBootstrapService(testParams(&s.BaseServiceTestSuite))
}

func (s *BootstrapServiceSuite) TestCreatesAnnualSibling() {
	refs, err := s.service().ResolvePrices(s.GetContext())
	s.Require().NoError(err)
	s.Equal(testutil.MonthlyPriceID, refs.Monthly)
	s.Equal(testutil.MonthlyPriceID, refs.Base)
	s.Equal(testutil.UpgradePriceID, refs.Upgrade)
	s.Require().NotEmpty(refs.Annual)

	annual, err := s.GetPlatform().Prices().Retrieve(s.GetContext(), refs.Annual)
	s.Require().NoError(err)
	s.Equal(types.BillingIntervalYear, annual.Interval)
	s.Equal(12*testutil.MonthlyAmount, annual.UnitAmount)
	s.Equal("usd", annual.Currency)

	monthly, err := s.GetPlatform().Prices().Retrieve(s.GetContext(), refs.Monthly)
	s.Require().NoError(err)
	s.Equal(monthly.ProductID, annual.ProductID)
}

func (s *BootstrapServiceSuite) TestReusesExistingAnnualSibling() {
	first, err := s.service().ResolvePrices(s.GetContext())
	s.Require().NoError(err)
	second, err := s.service().ResolvePrices(s.GetContext())
	s.Require().NoError(err)
	s.Equal(first.Annual, second.Annual)
}

func (s *BootstrapServiceSuite) TestCreatesProductWithoutConfiguredPrice() {
	s.GetConfig().Stripe.PriceID = ""
	s.GetConfig().Stripe.BasePriceID = ""

	refs, err := s.service().ResolvePrices(s.GetContext())
	s.Require().NoError(err)
	s.Equal(refs.Monthly, refs.Base)

	monthly, err := s.GetPlatform().Prices().Retrieve(s.GetContext(), refs.Monthly)
	s.Require().NoError(err)
	s.Equal(int64(1000), monthly.UnitAmount)
	s.Equal(types.BillingIntervalMonth, monthly.Interval)
	s.Equal("10.00", monthly.UnitAmountDecimal().StringFixed(2))

	annual, err := s.GetPlatform().Prices().Retrieve(s.GetContext(), refs.Annual)
	s.Require().NoError(err)
	s.Equal(int64(12000), annual.UnitAmount)

	products, err := s.GetPlatform().Prices().ListProducts(s.GetContext())
	s.Require().NoError(err)
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	s.Contains(names, BootstrapProductName)
}

func (s *BootstrapServiceSuite) TestUnknownConfiguredPrice() {
	s.GetConfig().Stripe.PriceID = "price_missing"

	_, err := s.service().ResolvePrices(s.GetContext())
	s.Require().Error(err)
}
