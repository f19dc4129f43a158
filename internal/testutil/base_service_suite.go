package testutil

import (
	"context"
	"time"

	"github.com/flexprice/clockwork/internal/config"
	"github.com/flexprice/clockwork/internal/logger"
	"github.com/flexprice/clockwork/internal/metrics"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/flexprice/clockwork/internal/validator"
	"github.com/stretchr/testify/suite"
)

const (
	MonthlyPriceID  = "price_monthly"
	AnnualPriceID   = "price_annual"
	UpgradePriceID  = "price_upgrade"
	MonthlyAmount   = int64(1000)
	UpgradeAmount   = int64(2500)
	AnnualAmount    = int64(12000)
	testPollTimeout = 2 * time.Second
)

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	platform *SimulatedPlatform
	logger   *logger.Logger
	config   *config.Configuration
	metrics  *metrics.Metrics
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()
	s.logger = logger.NewNoopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.config = TestConfig()
	s.metrics = metrics.NewMetrics()
	s.setupPlatform()
}

func (s *BaseServiceTestSuite) setupPlatform() {
	s.platform = NewSimulatedPlatform()
	s.platform.AddPrice(MonthlyPriceID, MonthlyAmount, types.BillingIntervalMonth)
	s.platform.AddPrice(AnnualPriceID, AnnualAmount, types.BillingIntervalYear)
	s.platform.AddPrice(UpgradePriceID, UpgradeAmount, types.BillingIntervalMonth)
}

// ResetPlatform drops all simulated remote state
func (s *BaseServiceTestSuite) ResetPlatform() {
	s.setupPlatform()
}

// TestConfig returns the default configuration with every sleep shrunk to
// milliseconds so retry and polling loops run fast.
func TestConfig() *config.Configuration {
	cfg := config.GetDefaultConfig()
	cfg.Stripe.SecretKey = "sk_test_simulated"
	cfg.Stripe.PriceID = MonthlyPriceID
	cfg.Stripe.BasePriceID = MonthlyPriceID
	cfg.Stripe.UpgradePriceID = UpgradePriceID

	cfg.Advancer.InitialBackoff = time.Millisecond
	cfg.Advancer.MaxBackoff = 5 * time.Millisecond
	cfg.Advancer.PollInterval = time.Millisecond
	cfg.Advancer.PollTimeout = testPollTimeout

	cfg.Scenario.CancelInitialBackoff = time.Millisecond
	cfg.Scenario.CancelMaxBackoff = 2 * time.Millisecond
	return cfg
}

func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

func (s *BaseServiceTestSuite) GetPlatform() *SimulatedPlatform {
	return s.platform
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetMetrics() *metrics.Metrics {
	return s.metrics
}
