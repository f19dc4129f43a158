package stripe

import (
	"context"

	"github.com/flexprice/clockwork/internal/domain/subscription"
	"github.com/flexprice/clockwork/internal/idempotency"
	"github.com/flexprice/clockwork/internal/logger"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v82"
)

// SubscriptionService handles Stripe subscription operations
type SubscriptionService struct {
	client *Client
	logger *logger.Logger
}

var _ subscription.Gateway = (*SubscriptionService)(nil)

func NewSubscriptionService(client *Client, logger *logger.Logger) *SubscriptionService {
	return &SubscriptionService{
		client: client,
		logger: logger,
	}
}

// Create starts a charge-automatically subscription. With an anchor the
// first cycle is pinned and nothing is prorated up to it.
func (s *SubscriptionService) Create(ctx context.Context, params *subscription.CreateParams) (*subscription.Subscription, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	createParams := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(params.EntityID),
		Items: []*stripe.SubscriptionCreateItemParams{
			{
				Price:    stripe.String(params.PriceRef),
				Quantity: stripe.Int64(1),
			},
		},
		CollectionMethod: stripe.String(string(types.CollectionMethodChargeAutomatically)),
		PaymentBehavior:  stripe.String("allow_incomplete"),
	}
	if params.BillingAnchor != nil {
		createParams.BillingCycleAnchor = stripe.Int64(*params.BillingAnchor)
		createParams.ProrationBehavior = stripe.String(string(types.ProrationBehaviorNone))
	}
	for k, v := range params.Metadata {
		createParams.AddMetadata(k, v)
	}
	createParams.AddExpand("latest_invoice")
	createParams.IdempotencyKey = s.client.idempotencyKey(idempotency.ScopeSubscription, map[string]any{
		"customer": params.EntityID,
		"price":    params.PriceRef,
		"anchor":   lo.FromPtr(params.BillingAnchor),
		"metadata": params.Metadata,
	})

	sub, err := sc.V1Subscriptions.Create(ctx, createParams)
	if err != nil {
		return nil, classifyError(err, "Failed to create subscription", map[string]any{
			"customer_id": params.EntityID,
			"price_id":    params.PriceRef,
		})
	}

	s.logger.Debugw("created stripe subscription",
		"subscription_id", sub.ID,
		"customer_id", params.EntityID,
		"status", sub.Status,
		"billing_cycle_anchor", sub.BillingCycleAnchor)

	return toSubscription(sub), nil
}

// Retrieve fetches the subscription with latest_invoice expanded
func (s *SubscriptionService) Retrieve(ctx context.Context, id string) (*subscription.Subscription, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	params := &stripe.SubscriptionRetrieveParams{}
	params.AddExpand("latest_invoice")

	sub, err := sc.V1Subscriptions.Retrieve(ctx, id, params)
	if err != nil {
		return nil, classifyError(err, "Failed to retrieve subscription", map[string]any{
			"subscription_id": id,
		})
	}
	return toSubscription(sub), nil
}

// ChangePrice moves the existing item onto a new price
func (s *SubscriptionService) ChangePrice(ctx context.Context, id, itemID, priceRef string, proration types.ProrationBehavior) (*subscription.Subscription, error) {
	params := &stripe.SubscriptionUpdateParams{
		Items: []*stripe.SubscriptionUpdateItemParams{
			{
				ID:    stripe.String(itemID),
				Price: stripe.String(priceRef),
			},
		},
		ProrationBehavior: stripe.String(string(proration)),
	}
	return s.update(ctx, id, params, "Failed to change subscription price")
}

// ReplaceItem deletes the existing item and adds one on the new price
func (s *SubscriptionService) ReplaceItem(ctx context.Context, id, itemID, priceRef string, proration types.ProrationBehavior) (*subscription.Subscription, error) {
	params := &stripe.SubscriptionUpdateParams{
		Items: []*stripe.SubscriptionUpdateItemParams{
			{
				ID:      stripe.String(itemID),
				Deleted: stripe.Bool(true),
			},
			{
				Price: stripe.String(priceRef),
			},
		},
		ProrationBehavior: stripe.String(string(proration)),
	}
	return s.update(ctx, id, params, "Failed to replace subscription item")
}

func (s *SubscriptionService) CancelAtPeriodEnd(ctx context.Context, id string) (*subscription.Subscription, error) {
	params := &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	return s.update(ctx, id, params, "Failed to schedule subscription cancellation")
}

// Cancel cancels the subscription immediately
func (s *SubscriptionService) Cancel(ctx context.Context, id string) (*subscription.Subscription, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := sc.V1Subscriptions.Cancel(ctx, id, &stripe.SubscriptionCancelParams{})
	if err != nil {
		return nil, classifyError(err, "Failed to cancel subscription", map[string]any{
			"subscription_id": id,
		})
	}
	return toSubscription(sub), nil
}

// List returns every subscription of the customer, canceled ones included
func (s *SubscriptionService) List(ctx context.Context, entityID string) ([]*subscription.Subscription, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(entityID),
		Status:   stripe.String("all"),
	}
	params.Limit = stripe.Int64(100)

	var subs []*subscription.Subscription
	for sub, err := range sc.V1Subscriptions.List(ctx, params) {
		if err != nil {
			return nil, classifyError(err, "Failed to list subscriptions", map[string]any{
				"customer_id": entityID,
			})
		}
		subs = append(subs, toSubscription(sub))
	}
	return subs, nil
}

func (s *SubscriptionService) update(ctx context.Context, id string, params *stripe.SubscriptionUpdateParams, hint string) (*subscription.Subscription, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := sc.V1Subscriptions.Update(ctx, id, params)
	if err != nil {
		return nil, classifyError(err, hint, map[string]any{
			"subscription_id": id,
		})
	}
	return toSubscription(sub), nil
}
