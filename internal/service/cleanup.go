package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/flexprice/clockwork/internal/domain/clock"
	"github.com/flexprice/clockwork/internal/domain/customer"
	"github.com/flexprice/clockwork/internal/domain/price"
	"github.com/flexprice/clockwork/internal/domain/subscription"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/samber/lo"
)

// legacyClockPrefix names clocks left by the older learning scripts
const legacyClockPrefix = "learn_tc_"

// CleanupService removes test data left by earlier runs. Data is found by
// the naming conventions the generators use, so nothing is tracked between
// runs.
type CleanupService interface {
	Cleanup(ctx context.Context) (*CleanupResult, error)
}

type CleanupResult struct {
	Customers     int `json:"customers"`
	Subscriptions int `json:"subscriptions"`
	Clocks        int `json:"clocks"`
	Prices        int `json:"prices"`
	Products      int `json:"products"`
	Failed        int `json:"failed"`
}

type cleanupService struct {
	ServiceParams
}

func NewCleanupService(params ServiceParams) CleanupService {
	return &cleanupService{ServiceParams: params}
}

func (s *cleanupService) Cleanup(ctx context.Context) (*CleanupResult, error) {
	result := &CleanupResult{}

	if err := s.cleanupCustomers(ctx, result); err != nil {
		return result, err
	}
	if err := s.cleanupClocks(ctx, result); err != nil {
		return result, err
	}
	if err := s.cleanupProducts(ctx, result); err != nil {
		return result, err
	}

	s.Logger.Infow("cleanup finished",
		"customers", result.Customers,
		"subscriptions", result.Subscriptions,
		"clocks", result.Clocks,
		"prices", result.Prices,
		"products", result.Products,
		"failed", result.Failed,
	)
	return result, nil
}

// generatedEmail reports whether email was produced by one of the planners
func (s *cleanupService) generatedEmail(email string) bool {
	local, domain, ok := strings.Cut(strings.ToLower(email), "@")
	if !ok || domain != strings.ToLower(s.Config.Run.EmailDomain) {
		return false
	}
	prefixes := []string{"active", "cancel", "upgrade"}
	if p := s.Config.Run.EmailPrefix; p != "" {
		prefixes = append(prefixes, strings.ToLower(p))
	}
	return lo.SomeBy(prefixes, func(p string) bool { return strings.HasPrefix(local, p) })
}

func (s *cleanupService) cleanupCustomers(ctx context.Context, result *CleanupResult) error {
	query := fmt.Sprintf(`email~"@%s"`, s.Config.Run.EmailDomain)

	var found []*customer.BillingEntity
	err := s.remote(ctx, func() error {
		var err error
		found, err = s.Platform.Customers().Search(ctx, query)
		return err
	})
	if err != nil {
		return err
	}

	targets := lo.Filter(found, func(e *customer.BillingEntity, _ int) bool { return s.generatedEmail(e.Email) })
	s.Logger.Infow("customers matched for cleanup", "query", query, "matched", len(targets), "searched", len(found))

	for _, e := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Subscriptions += s.cancelSubscriptions(ctx, e.ID, result)

		err := s.remote(ctx, func() error { return s.Platform.Customers().Delete(ctx, e.ID) })
		if err != nil {
			result.Failed++
			s.Logger.Warnw("failed to delete customer", "customer_id", e.ID, "email", e.Email, "error", err)
			continue
		}
		result.Customers++
		s.Logger.Debugw("customer deleted", "customer_id", e.ID, "email", e.Email)
	}
	return nil
}

func (s *cleanupService) cancelSubscriptions(ctx context.Context, entityID string, result *CleanupResult) int {
	var subs []*subscription.Subscription
	err := s.remote(ctx, func() error {
		var err error
		subs, err = s.Platform.Subscriptions().List(ctx, entityID)
		return err
	})
	if err != nil {
		result.Failed++
		s.Logger.Warnw("failed to list subscriptions", "customer_id", entityID, "error", err)
		return 0
	}

	canceled := 0
	for _, sub := range subs {
		if sub.Status == types.SubscriptionStatusCanceled {
			continue
		}
		err := s.remote(ctx, func() error {
			_, err := s.Platform.Subscriptions().Cancel(ctx, sub.ID)
			return err
		})
		if err != nil {
			result.Failed++
			s.Logger.Warnw("failed to cancel subscription", "subscription_id", sub.ID, "error", err)
			continue
		}
		canceled++
	}
	return canceled
}

func (s *cleanupService) cleanupClocks(ctx context.Context, result *CleanupResult) error {
	lister := s.Platform.ClockLister()

	var clocks []*clock.SimulatedClock
	err := s.remote(ctx, func() error {
		var err error
		clocks, err = lister.List(ctx)
		return err
	})
	if err != nil {
		return err
	}

	prefixes := []string{s.Config.Scenario.ClockNamePrefix, legacyClockPrefix}
	for _, c := range clocks {
		if !lo.SomeBy(prefixes, func(p string) bool { return p != "" && strings.HasPrefix(c.Name, p) }) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.remote(ctx, func() error { return lister.Delete(ctx, c.ID) }); err != nil {
			result.Failed++
			s.Logger.Warnw("failed to delete clock", "clock_id", c.ID, "name", c.Name, "error", err)
			continue
		}
		result.Clocks++
	}
	return nil
}

// cleanupProducts archives the bootstrap product's prices and deletes it.
// Products with prices in use are only archived by the platform.
func (s *cleanupService) cleanupProducts(ctx context.Context, result *CleanupResult) error {
	prices := s.Platform.Prices()

	var products []*price.Product
	err := s.remote(ctx, func() error {
		var err error
		products, err = prices.ListProducts(ctx)
		return err
	})
	if err != nil {
		return err
	}

	for _, product := range products {
		if product.Name != BootstrapProductName || !product.Active {
			continue
		}

		var owned []*price.Price
		err := s.remote(ctx, func() error {
			var err error
			owned, err = prices.ListByProduct(ctx, product.ID)
			return err
		})
		if err != nil {
			result.Failed++
			s.Logger.Warnw("failed to list product prices", "product_id", product.ID, "error", err)
			continue
		}

		for _, p := range owned {
			if !p.Active {
				continue
			}
			if err := s.remote(ctx, func() error { return prices.ArchivePrice(ctx, p.ID) }); err != nil {
				result.Failed++
				s.Logger.Warnw("failed to archive price", "price_id", p.ID, "error", err)
				continue
			}
			result.Prices++
		}

		if err := s.remote(ctx, func() error { return prices.DeleteProduct(ctx, product.ID) }); err != nil {
			result.Failed++
			s.Logger.Warnw("failed to delete product", "product_id", product.ID, "error", err)
			continue
		}
		result.Products++
	}
	return nil
}
