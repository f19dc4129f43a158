package stripe

import (
	"context"

	"github.com/flexprice/clockwork/internal/domain/price"
	"github.com/flexprice/clockwork/internal/logger"
	"github.com/stripe/stripe-go/v82"
)

// PriceService handles Stripe product and price operations
type PriceService struct {
	client *Client
	logger *logger.Logger
}

var _ price.Gateway = (*PriceService)(nil)

func NewPriceService(client *Client, logger *logger.Logger) *PriceService {
	return &PriceService{
		client: client,
		logger: logger,
	}
}

func (s *PriceService) Retrieve(ctx context.Context, id string) (*price.Price, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	p, err := sc.V1Prices.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, classifyError(err, "Failed to retrieve price", map[string]any{
			"price_id": id,
		})
	}
	return toPrice(p), nil
}

func (s *PriceService) ListByProduct(ctx context.Context, productID string) ([]*price.Price, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	params := &stripe.PriceListParams{
		Product: stripe.String(productID),
	}
	params.Limit = stripe.Int64(100)

	var prices []*price.Price
	for p, err := range sc.V1Prices.List(ctx, params) {
		if err != nil {
			return nil, classifyError(err, "Failed to list prices", map[string]any{
				"product_id": productID,
			})
		}
		prices = append(prices, toPrice(p))
	}
	return prices, nil
}

func (s *PriceService) CreateProduct(ctx context.Context, name string) (*price.Product, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	p, err := sc.V1Products.Create(ctx, &stripe.ProductCreateParams{
		Name: stripe.String(name),
	})
	if err != nil {
		return nil, classifyError(err, "Failed to create product", map[string]any{
			"name": name,
		})
	}
	return toProduct(p), nil
}

// CreatePrice creates a recurring price on the product
func (s *PriceService) CreatePrice(ctx context.Context, params *price.CreatePriceParams) (*price.Price, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	p, err := sc.V1Prices.Create(ctx, &stripe.PriceCreateParams{
		Product:    stripe.String(params.ProductID),
		UnitAmount: stripe.Int64(params.UnitAmount),
		Currency:   stripe.String(params.Currency),
		Recurring: &stripe.PriceCreateRecurringParams{
			Interval: stripe.String(string(params.Interval)),
		},
	})
	if err != nil {
		return nil, classifyError(err, "Failed to create price", map[string]any{
			"product_id":  params.ProductID,
			"unit_amount": params.UnitAmount,
			"interval":    params.Interval,
		})
	}

	s.logger.Debugw("created stripe price",
		"price_id", p.ID,
		"product_id", params.ProductID,
		"interval", params.Interval)
	return toPrice(p), nil
}

func (s *PriceService) ListProducts(ctx context.Context) ([]*price.Product, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	params := &stripe.ProductListParams{}
	params.Limit = stripe.Int64(100)

	var products []*price.Product
	for p, err := range sc.V1Products.List(ctx, params) {
		if err != nil {
			return nil, classifyError(err, "Failed to list products", nil)
		}
		products = append(products, toProduct(p))
	}
	return products, nil
}

// ArchivePrice deactivates a price. Stripe prices cannot be deleted.
func (s *PriceService) ArchivePrice(ctx context.Context, id string) error {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return err
	}

	if _, err := sc.V1Prices.Update(ctx, id, &stripe.PriceUpdateParams{
		Active: stripe.Bool(false),
	}); err != nil {
		return classifyError(err, "Failed to archive price", map[string]any{
			"price_id": id,
		})
	}
	return nil
}

// DeleteProduct deletes the product, archiving it instead when Stripe
// refuses because prices still reference it
func (s *PriceService) DeleteProduct(ctx context.Context, id string) error {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return err
	}

	_, err = sc.V1Products.Delete(ctx, id, nil)
	if err == nil {
		return nil
	}
	s.logger.Warnw("product delete refused, archiving instead", "product_id", id, "error", err)

	sc, err = s.client.GetStripeClient(ctx)
	if err != nil {
		return err
	}
	if _, err := sc.V1Products.Update(ctx, id, &stripe.ProductUpdateParams{
		Active: stripe.Bool(false),
	}); err != nil {
		return classifyError(err, "Failed to archive product", map[string]any{
			"product_id": id,
		})
	}
	return nil
}
