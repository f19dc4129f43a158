package service

import (
	"context"
	"fmt"

	"github.com/flexprice/clockwork/internal/domain/customer"
	"github.com/flexprice/clockwork/internal/domain/invoice"
	"github.com/flexprice/clockwork/internal/domain/subscription"
	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/samber/lo"
)

// WarehouseRepository is the load side of the warehouse.
// *clickhouse.WarehouseRepository satisfies it.
type WarehouseRepository interface {
	EnsureTables(ctx context.Context) error
	ReplaceCustomers(ctx context.Context, entities []*customer.BillingEntity) error
	ReplaceSubscriptions(ctx context.Context, subs []*subscription.Subscription) error
	ReplaceInvoices(ctx context.Context, invoices []*invoice.Invoice) error
}

// WarehouseService copies the generated billing history into the warehouse
type WarehouseService interface {
	// Load extracts every customer matching query with its subscriptions and
	// invoices, then truncates and reloads the warehouse tables. An empty
	// query matches the configured email domain.
	Load(ctx context.Context, query string) (*WarehouseResult, error)
}

type WarehouseResult struct {
	Customers     int `json:"customers"`
	Subscriptions int `json:"subscriptions"`
	Invoices      int `json:"invoices"`
	Backfilled    int `json:"backfilled"`
	Unmapped      int `json:"unmapped"`
}

type warehouseService struct {
	ServiceParams
	repo WarehouseRepository
}

func NewWarehouseService(params ServiceParams, repo WarehouseRepository) WarehouseService {
	return &warehouseService{ServiceParams: params, repo: repo}
}

func (s *warehouseService) Load(ctx context.Context, query string) (*WarehouseResult, error) {
	if query == "" {
		query = fmt.Sprintf(`email~"@%s"`, s.Config.Run.EmailDomain)
	}

	var entities []*customer.BillingEntity
	err := s.remote(ctx, func() error {
		var err error
		entities, err = s.Platform.Customers().Search(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &WarehouseResult{Customers: len(entities)}
	var (
		subs     []*subscription.Subscription
		invoices []*invoice.Invoice
	)
	for _, e := range entities {
		entitySubs, entityInvoices, err := s.extract(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		s.backfill(e.ID, entitySubs, entityInvoices, result)
		subs = append(subs, entitySubs...)
		invoices = append(invoices, entityInvoices...)
	}
	result.Subscriptions = len(subs)
	result.Invoices = len(invoices)

	s.Logger.Infow("billing history extracted",
		"query", query,
		"customers", result.Customers,
		"subscriptions", result.Subscriptions,
		"invoices", result.Invoices,
		"backfilled", result.Backfilled,
		"unmapped", result.Unmapped,
	)

	if err := s.repo.EnsureTables(ctx); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceCustomers(ctx, entities); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceSubscriptions(ctx, subs); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceInvoices(ctx, invoices); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *warehouseService) extract(ctx context.Context, entityID string) ([]*subscription.Subscription, []*invoice.Invoice, error) {
	var subs []*subscription.Subscription
	err := s.remote(ctx, func() error {
		var err error
		subs, err = s.Platform.Subscriptions().List(ctx, entityID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var invoices []*invoice.Invoice
	err = s.remote(ctx, func() error {
		var err error
		invoices, err = s.Platform.Invoices().List(ctx, entityID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return subs, invoices, nil
}

// backfill sets the subscription on invoices that arrive without one. The
// entity should own exactly one subscription; when it owns several the most
// recently created wins.
func (s *warehouseService) backfill(entityID string, subs []*subscription.Subscription, invoices []*invoice.Invoice, result *WarehouseResult) {
	missing := lo.Filter(invoices, func(inv *invoice.Invoice, _ int) bool { return inv.SubscriptionID == nil })
	if len(missing) == 0 {
		return
	}

	if len(subs) == 0 {
		result.Unmapped += len(missing)
		s.Logger.Warnw("invoices without a subscription to map to",
			"customer_id", entityID,
			"invoices", len(missing),
			"error", ierr.ErrMappingMissing,
		)
		return
	}

	latest := mostRecent(subs)
	if len(subs) > 1 {
		s.Logger.Warnw("customer has several subscriptions, using the most recent",
			"customer_id", entityID,
			"subscriptions", len(subs),
			"subscription_id", latest.ID,
			"error", ierr.ErrMappingMissing,
		)
	}
	for _, inv := range missing {
		inv.SubscriptionID = lo.ToPtr(latest.ID)
		result.Backfilled++
	}
}

// mostRecent orders by creation time, then by id for subscriptions created
// in the same second.
func mostRecent(subs []*subscription.Subscription) *subscription.Subscription {
	return lo.MaxBy(subs, func(a, b *subscription.Subscription) bool {
		if a.Created != b.Created {
			return a.Created > b.Created
		}
		return a.ID > b.ID
	})
}
