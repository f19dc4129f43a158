package service

import (
	"context"

	"github.com/flexprice/clockwork/internal/domain/price"
	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/flexprice/clockwork/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	BootstrapProductName = "Test Product - Billing Historical"
	bootstrapCurrency    = "usd"
	bootstrapUnitAmount  = int64(1000)
)

// BootstrapService resolves the prices a run bills against, creating them
// when the configuration names none.
type BootstrapService interface {
	ResolvePrices(ctx context.Context) (*PriceRefs, error)
}

type bootstrapService struct {
	ServiceParams
}

func NewBootstrapService(params ServiceParams) BootstrapService {
	return &bootstrapService{ServiceParams: params}
}

func (s *bootstrapService) ResolvePrices(ctx context.Context) (*PriceRefs, error) {
	var (
		refs *PriceRefs
		err  error
	)
	if s.Config.Stripe.PriceID != "" {
		refs, err = s.fromConfiguredPrice(ctx, s.Config.Stripe.PriceID)
	} else {
		refs, err = s.createProduct(ctx)
	}
	if err != nil {
		return nil, err
	}

	refs.Base = lo.Ternary(s.Config.Stripe.BasePriceID != "", s.Config.Stripe.BasePriceID, refs.Monthly)
	refs.Upgrade = s.Config.Stripe.UpgradePriceID

	s.Logger.Infow("prices resolved",
		"monthly_price_id", refs.Monthly,
		"annual_price_id", refs.Annual,
		"base_price_id", refs.Base,
		"upgrade_price_id", refs.Upgrade,
	)
	return refs, nil
}

// fromConfiguredPrice uses the configured monthly price and finds or creates
// a yearly sibling on the same product at twelve times the unit amount.
func (s *bootstrapService) fromConfiguredPrice(ctx context.Context, priceID string) (*PriceRefs, error) {
	prices := s.Platform.Prices()

	var monthly *price.Price
	err := s.remote(ctx, func() error {
		var err error
		monthly, err = prices.Retrieve(ctx, priceID)
		return err
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Configured price %s could not be retrieved", priceID).
			Mark(ierr.ErrValidation)
	}

	var siblings []*price.Price
	err = s.remote(ctx, func() error {
		var err error
		siblings, err = prices.ListByProduct(ctx, monthly.ProductID)
		return err
	})
	if err != nil {
		return nil, err
	}

	annual, found := lo.Find(siblings, func(p *price.Price) bool {
		return p.Active && p.Interval == types.BillingIntervalYear && p.Currency == monthly.Currency
	})
	if found {
		s.Logger.Debugw("using existing annual price", "price_id", annual.ID, "product_id", monthly.ProductID)
		return &PriceRefs{Monthly: monthly.ID, Annual: annual.ID}, nil
	}

	annual, err = s.createPrice(ctx, &price.CreatePriceParams{
		ProductID:  monthly.ProductID,
		UnitAmount: annualAmount(monthly.UnitAmount),
		Currency:   monthly.Currency,
		Interval:   types.BillingIntervalYear,
	})
	if err != nil {
		return nil, err
	}
	return &PriceRefs{Monthly: monthly.ID, Annual: annual.ID}, nil
}

func (s *bootstrapService) createProduct(ctx context.Context) (*PriceRefs, error) {
	var product *price.Product
	err := s.remote(ctx, func() error {
		var err error
		product, err = s.Platform.Prices().CreateProduct(ctx, BootstrapProductName)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Infow("product created", "product_id", product.ID, "name", product.Name)

	monthly, err := s.createPrice(ctx, &price.CreatePriceParams{
		ProductID:  product.ID,
		UnitAmount: bootstrapUnitAmount,
		Currency:   bootstrapCurrency,
		Interval:   types.BillingIntervalMonth,
	})
	if err != nil {
		return nil, err
	}

	annual, err := s.createPrice(ctx, &price.CreatePriceParams{
		ProductID:  product.ID,
		UnitAmount: annualAmount(bootstrapUnitAmount),
		Currency:   bootstrapCurrency,
		Interval:   types.BillingIntervalYear,
	})
	if err != nil {
		return nil, err
	}
	return &PriceRefs{Monthly: monthly.ID, Annual: annual.ID}, nil
}

func (s *bootstrapService) createPrice(ctx context.Context, params *price.CreatePriceParams) (*price.Price, error) {
	if err := validator.ValidateRequest(params); err != nil {
		return nil, err
	}

	var created *price.Price
	err := s.remote(ctx, func() error {
		var err error
		created, err = s.Platform.Prices().CreatePrice(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("price created",
		"price_id", created.ID,
		"product_id", created.ProductID,
		"interval", created.Interval,
		"amount", created.UnitAmountDecimal().StringFixed(2),
		"currency", created.Currency,
	)
	return created, nil
}

// annualAmount is twelve monthly payments in minor units
func annualAmount(monthly int64) int64 {
	return decimal.NewFromInt(monthly).Mul(decimal.NewFromInt(12)).IntPart()
}
