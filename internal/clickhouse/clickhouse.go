package clickhouse

import (
	"context"

	clickhouse_go "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/flexprice/clockwork/internal/config"
	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/flexprice/clockwork/internal/logger"
	"github.com/flexprice/clockwork/internal/sentry"
)

// Store is the warehouse connection. Every call opens a sentry span when
// sentry is enabled.
type Store struct {
	conn   driver.Conn
	sentry *sentry.Service
	logger *logger.Logger
}

func NewStore(ctx context.Context, cfg *config.Configuration, sentryService *sentry.Service, logger *logger.Logger) (*Store, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, ierr.NewError("clickhouse warehouse is disabled").
			WithHint("Set clickhouse.enabled to load the warehouse").
			Mark(ierr.ErrInvalidOperation)
	}

	conn, err := clickhouse_go.Open(cfg.ClickHouse.GetClientOptions())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("init clickhouse client").
			Mark(ierr.ErrDatabase)
	}

	s := &Store{conn: conn, sentry: sentryService, logger: logger}
	if err := s.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Infow("connected to clickhouse",
		"address", cfg.ClickHouse.Address,
		"database", cfg.ClickHouse.Database,
	)
	return s, nil
}

// WithSpan creates a new context with a ClickHouse span for monitoring database operations
func (s *Store) WithSpan(ctx context.Context, operation string, params map[string]interface{}) (context.Context, *sentry.SpanFinisher) {
	if s.sentry == nil {
		return ctx, &sentry.SpanFinisher{}
	}

	span, newCtx := s.sentry.StartClickHouseSpan(ctx, operation, params)
	return newCtx, &sentry.SpanFinisher{Span: span}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, span := s.WithSpan(ctx, "clickhouse.ping", nil)
	defer span.Finish()

	if err := s.conn.Ping(ctx); err != nil {
		return ierr.WithError(err).
			WithHint("clickhouse is unreachable").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// Exec runs a statement that returns no rows
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	ctx, span := s.WithSpan(ctx, "clickhouse.exec", map[string]interface{}{
		"query":      truncateQuery(query),
		"args_count": len(args),
	})
	defer span.Finish()

	if err := s.conn.Exec(ctx, query, args...); err != nil {
		return ierr.WithError(err).
			WithHint("clickhouse statement failed").
			WithReportableDetails(map[string]interface{}{"query": truncateQuery(query)}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// InsertRows sends rows as a single native batch
func (s *Store) InsertRows(ctx context.Context, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, span := s.WithSpan(ctx, "clickhouse.batch_insert", map[string]interface{}{
		"query": truncateQuery(query),
		"rows":  len(rows),
	})
	defer span.Finish()

	batch, err := s.conn.PrepareBatch(ctx, query)
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to prepare batch").
			Mark(ierr.ErrDatabase)
	}

	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			_ = batch.Abort()
			return ierr.WithError(err).
				WithHint("failed to append row to batch").
				Mark(ierr.ErrDatabase)
		}
	}

	if err := batch.Send(); err != nil {
		return ierr.WithError(err).
			WithHint("failed to send batch").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// Truncate query to avoid sending too much data to Sentry
func truncateQuery(query string) string {
	const maxQueryLength = 1000
	if len(query) > maxQueryLength {
		return query[:maxQueryLength] + "..."
	}
	return query
}
