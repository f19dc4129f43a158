package main

import (
	"context"
	"time"

	"github.com/flexprice/clockwork/internal/config"
	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/flexprice/clockwork/internal/integration/s3"
	"github.com/flexprice/clockwork/internal/integration/stripe"
	"github.com/flexprice/clockwork/internal/interfaces"
	"github.com/flexprice/clockwork/internal/logger"
	"github.com/flexprice/clockwork/internal/metrics"
	"github.com/flexprice/clockwork/internal/sentry"
	"github.com/flexprice/clockwork/internal/service"
	"github.com/flexprice/clockwork/internal/validator"
	"go.uber.org/fx"
)

const stopTimeout = 5 * time.Second

// app holds everything a command needs once fx has wired the graph
type app struct {
	Config    *config.Configuration
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
	Sentry    *sentry.Service
	Params    service.ServiceParams
	Bootstrap service.BootstrapService
	Scenario  service.ScenarioService
	Export    service.ExportService
	Cleanup   service.CleanupService
}

func providePlatform(client *stripe.Client, logger *logger.Logger) interfaces.BillingPlatform {
	return stripe.NewPlatform(client, logger)
}

// provideUploader returns a nil uploader when S3 export is off
func provideUploader(cfg *config.Configuration, logger *logger.Logger) (service.ArtifactUploader, error) {
	if !cfg.S3.Enabled {
		return nil, nil
	}
	u, err := s3.NewUploader(context.Background(), cfg.S3, logger)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// withApp builds the dependency graph, applies the command's overrides to
// the loaded configuration and runs fn between fx start and stop.
func withApp(ctx context.Context, override func(*config.Configuration), fn func(ctx context.Context, a *app) error) error {
	var a app

	fxApp := fx.New(
		fx.NopLogger,
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			metrics.NewMetrics,

			// Billing platform
			stripe.NewClient,
			providePlatform,

			// Artifacts
			provideUploader,

			// Services
			service.NewServiceParams,
			service.NewClockAdvancer,
			service.NewDunningAdvancer,
			service.NewInvoiceReconciler,
			service.NewScenarioService,
			service.NewBootstrapService,
			service.NewCleanupService,
			service.NewExportService,
		),
		fx.Decorate(func(cfg *config.Configuration) (*config.Configuration, error) {
			if override == nil {
				return cfg, nil
			}
			override(cfg)
			if err := cfg.Validate(); err != nil {
				return nil, ierr.WithError(err).
					WithHint("Check the command line flags").
					Mark(ierr.ErrValidation)
			}
			return cfg, nil
		}),
		sentry.Module(),
		fx.Invoke(validator.NewValidator),
		fx.Populate(
			&a.Config,
			&a.Logger,
			&a.Metrics,
			&a.Sentry,
			&a.Params,
			&a.Bootstrap,
			&a.Scenario,
			&a.Export,
			&a.Cleanup,
		),
	)
	if err := fxApp.Err(); err != nil {
		return err
	}

	if err := fxApp.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := fxApp.Stop(stopCtx); err != nil {
			a.Logger.Warnw("failed to stop cleanly", "error", err)
		}
	}()

	runErr := fn(ctx, &a)

	if err := a.Metrics.WriteTextfile(a.Config.Metrics.TextfilePath); err != nil {
		a.Logger.Warnw("failed to write metrics textfile", "path", a.Config.Metrics.TextfilePath, "error", err)
	}
	return runErr
}
