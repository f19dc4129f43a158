package sentry

import (
	"context"
	"time"

	"github.com/flexprice/clockwork/internal/config"
	"github.com/flexprice/clockwork/internal/logger"
	"github.com/getsentry/sentry-go"
	"go.uber.org/fx"
)

const flushTimeout = 2 * time.Second

// Service reports aborted entities and traces warehouse writes. Every
// method is a no-op when Sentry is disabled or the service is nil.
type Service struct {
	cfg    *config.Configuration
	logger *logger.Logger
}

func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewSentryService),
		fx.Invoke(RegisterHooks),
	)
}

func NewSentryService(cfg *config.Configuration, logger *logger.Logger) *Service {
	return &Service{cfg: cfg, logger: logger}
}

// RegisterHooks initialises the SDK when the run starts and flushes
// pending events when it stops
func RegisterHooks(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if !svc.Enabled() {
				svc.logger.Debug("sentry disabled")
				return nil
			}

			err := sentry.Init(sentry.ClientOptions{
				Dsn:              svc.cfg.Sentry.DSN,
				Environment:      svc.cfg.Sentry.Environment,
				EnableTracing:    svc.cfg.Sentry.SampleRate > 0,
				TracesSampleRate: svc.cfg.Sentry.SampleRate,
			})
			if err != nil {
				svc.logger.Errorw("failed to initialize sentry", "error", err)
				return err
			}
			svc.logger.Infow("sentry initialized",
				"environment", svc.cfg.Sentry.Environment,
				"sample_rate", svc.cfg.Sentry.SampleRate,
			)
			return nil
		},
		OnStop: func(context.Context) error {
			if svc.Enabled() && !sentry.Flush(flushTimeout) {
				svc.logger.Warn("sentry flush timed out, some events were dropped")
			}
			return nil
		},
	})
}

func (s *Service) Enabled() bool {
	return s != nil && s.cfg.Sentry.Enabled
}

// CaptureWithTags reports err with tags such as entity_id and clock_id so
// aborted entities can be found on the platform dashboard
func (s *Service) CaptureWithTags(err error, tags map[string]string) {
	if !s.Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

// AddBreadcrumb records a step, e.g. a clock advance, on the current scope
func (s *Service) AddBreadcrumb(category, message string, data map[string]interface{}) {
	if !s.Enabled() {
		return
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Level:    sentry.LevelInfo,
		Data:     data,
	})
}

// StartClickHouseSpan opens a span for one warehouse statement
func (s *Service) StartClickHouseSpan(ctx context.Context, operation string, params map[string]interface{}) (*sentry.Span, context.Context) {
	if !s.Enabled() {
		return nil, ctx
	}

	span := sentry.StartSpan(ctx, operation)
	span.Description = operation
	span.Op = "db.clickhouse"
	for k, v := range params {
		span.SetData(k, v)
	}
	return span, span.Context()
}

// SpanFinisher finishes an optional span; the zero value is a no-op
type SpanFinisher struct {
	Span *sentry.Span
}

func (f *SpanFinisher) Finish() {
	if f != nil && f.Span != nil {
		f.Span.Finish()
	}
}
