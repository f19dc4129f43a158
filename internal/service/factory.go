package service

import (
	"github.com/flexprice/clockwork/internal/config"
	"github.com/flexprice/clockwork/internal/interfaces"
	"github.com/flexprice/clockwork/internal/logger"
	"github.com/flexprice/clockwork/internal/metrics"
	"github.com/flexprice/clockwork/internal/sentry"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger   *logger.Logger
	Config   *config.Configuration
	Platform interfaces.BillingPlatform
	Metrics  *metrics.Metrics
	Sentry   *sentry.Service
}

// NewServiceParams creates a new instance of ServiceParams
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	platform interfaces.BillingPlatform,
	metrics *metrics.Metrics,
	sentry *sentry.Service,
) ServiceParams {
	return ServiceParams{
		Logger:   logger,
		Config:   config,
		Platform: platform,
		Metrics:  metrics,
		Sentry:   sentry,
	}
}
