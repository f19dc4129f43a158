package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/flexprice/clockwork/internal/domain/customer"
	"github.com/flexprice/clockwork/internal/domain/invoice"
	"github.com/flexprice/clockwork/internal/domain/subscription"
	"github.com/flexprice/clockwork/internal/logger"
	"github.com/samber/lo"
)

const batchSize = 100

// Writer is the part of the clickhouse store the loader uses
type Writer interface {
	Exec(ctx context.Context, query string, args ...any) error
	InsertRows(ctx context.Context, query string, rows [][]any) error
}

const (
	TableCustomers     = "stripe_customers"
	TableSubscriptions = "stripe_subscriptions"
	TableInvoices      = "stripe_invoices"
)

var ddl = map[string]string{
	TableCustomers: `
		CREATE TABLE IF NOT EXISTS stripe_customers (
			id String,
			email String,
			name String,
			clock_id String,
			created_at DateTime('UTC'),
			loaded_at DateTime('UTC')
		) ENGINE = MergeTree ORDER BY id`,
	TableSubscriptions: `
		CREATE TABLE IF NOT EXISTS stripe_subscriptions (
			id String,
			customer_id String,
			price_id String,
			status LowCardinality(String),
			billing_anchor DateTime('UTC'),
			created_at DateTime('UTC'),
			current_period_end DateTime('UTC'),
			cancel_at_period_end Bool,
			canceled_at Nullable(DateTime('UTC')),
			loaded_at DateTime('UTC')
		) ENGINE = MergeTree ORDER BY (customer_id, id)`,
	TableInvoices: `
		CREATE TABLE IF NOT EXISTS stripe_invoices (
			id String,
			customer_id String,
			subscription_id Nullable(String),
			status LowCardinality(String),
			amount_due Decimal(18, 2),
			amount_paid Decimal(18, 2),
			currency LowCardinality(String),
			attempt_count Int64,
			period_start DateTime('UTC'),
			period_end DateTime('UTC'),
			created_at DateTime('UTC'),
			loaded_at DateTime('UTC')
		) ENGINE = MergeTree ORDER BY (customer_id, created_at, id)`,
}

// WarehouseRepository truncates and reloads the billing tables
type WarehouseRepository struct {
	store  Writer
	logger *logger.Logger
	now    func() time.Time
}

func NewWarehouseRepository(store Writer, logger *logger.Logger) *WarehouseRepository {
	return &WarehouseRepository{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *WarehouseRepository) EnsureTables(ctx context.Context) error {
	for _, table := range []string{TableCustomers, TableSubscriptions, TableInvoices} {
		if err := r.store.Exec(ctx, ddl[table]); err != nil {
			return err
		}
	}
	return nil
}

func (r *WarehouseRepository) ReplaceCustomers(ctx context.Context, entities []*customer.BillingEntity) error {
	loadedAt := r.now()
	rows := lo.Map(entities, func(e *customer.BillingEntity, _ int) []any {
		return []any{e.ID, e.Email, e.Name, e.ClockID, unix(e.CreationTime), loadedAt}
	})
	return r.replace(ctx, TableCustomers, "INSERT INTO stripe_customers", rows)
}

func (r *WarehouseRepository) ReplaceSubscriptions(ctx context.Context, subs []*subscription.Subscription) error {
	loadedAt := r.now()
	rows := lo.Map(subs, func(s *subscription.Subscription, _ int) []any {
		var canceledAt *time.Time
		if s.CanceledAt != nil {
			canceledAt = lo.ToPtr(unix(*s.CanceledAt))
		}
		return []any{
			s.ID, s.EntityID, s.PriceRef, string(s.Status),
			unix(s.BillingAnchor), unix(s.Created), unix(s.CurrentPeriodEnd),
			s.CancelAtPeriodEnd, canceledAt, loadedAt,
		}
	})
	return r.replace(ctx, TableSubscriptions, "INSERT INTO stripe_subscriptions", rows)
}

func (r *WarehouseRepository) ReplaceInvoices(ctx context.Context, invoices []*invoice.Invoice) error {
	loadedAt := r.now()
	rows := lo.Map(invoices, func(inv *invoice.Invoice, _ int) []any {
		return []any{
			inv.ID, inv.EntityID, inv.SubscriptionID, string(inv.Status),
			inv.AmountDueDecimal(), inv.AmountPaidDecimal(), inv.Currency, inv.AttemptCount,
			unix(inv.PeriodStart), unix(inv.PeriodEnd), unix(inv.Created), loadedAt,
		}
	})
	return r.replace(ctx, TableInvoices, "INSERT INTO stripe_invoices", rows)
}

func (r *WarehouseRepository) replace(ctx context.Context, table, insert string, rows [][]any) error {
	if err := r.store.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE IF EXISTS %s", table)); err != nil {
		return err
	}

	for _, chunk := range lo.Chunk(rows, batchSize) {
		if err := r.store.InsertRows(ctx, insert, chunk); err != nil {
			return err
		}
	}

	r.logger.Infow("table loaded", "table", table, "rows", len(rows))
	return nil
}

func unix(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}
