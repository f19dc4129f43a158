package stripe

import (
	"context"

	"github.com/flexprice/clockwork/internal/domain/customer"
	"github.com/flexprice/clockwork/internal/idempotency"
	"github.com/flexprice/clockwork/internal/logger"
	"github.com/stripe/stripe-go/v82"
)

// CustomerService handles Stripe customer operations
type CustomerService struct {
	client *Client
	logger *logger.Logger
}

var _ customer.Gateway = (*CustomerService)(nil)

func NewCustomerService(client *Client, logger *logger.Logger) *CustomerService {
	return &CustomerService{
		client: client,
		logger: logger,
	}
}

// Create creates a customer bound to the given test clock
func (s *CustomerService) Create(ctx context.Context, params *customer.CreateParams) (*customer.BillingEntity, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	createParams := &stripe.CustomerCreateParams{
		Email:     stripe.String(params.Email),
		Name:      stripe.String(params.Name),
		TestClock: stripe.String(params.ClockID),
	}
	for k, v := range params.Metadata {
		createParams.AddMetadata(k, v)
	}
	createParams.IdempotencyKey = s.client.idempotencyKey(idempotency.ScopeCustomer, map[string]any{
		"email":    params.Email,
		"clock":    params.ClockID,
		"metadata": params.Metadata,
	})

	c, err := sc.V1Customers.Create(ctx, createParams)
	if err != nil {
		return nil, classifyError(err, "Failed to create customer in Stripe", map[string]any{
			"email":    params.Email,
			"clock_id": params.ClockID,
		})
	}

	s.logger.Debugw("created stripe customer",
		"customer_id", c.ID,
		"email", params.Email,
		"clock_id", params.ClockID)

	entity := toBillingEntity(c)
	// The create response carries the clock as an id-only reference
	if entity.ClockID == "" {
		entity.ClockID = params.ClockID
	}
	return entity, nil
}

func (s *CustomerService) Delete(ctx context.Context, id string) error {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return err
	}

	if _, err := sc.V1Customers.Delete(ctx, id, nil); err != nil {
		return classifyError(err, "Failed to delete customer", map[string]any{
			"customer_id": id,
		})
	}
	return nil
}

// List pages through every customer on the account
func (s *CustomerService) List(ctx context.Context) ([]*customer.BillingEntity, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	params := &stripe.CustomerListParams{}
	params.Limit = stripe.Int64(100)

	var entities []*customer.BillingEntity
	for c, err := range sc.V1Customers.List(ctx, params) {
		if err != nil {
			return nil, classifyError(err, "Failed to list customers", nil)
		}
		entities = append(entities, toBillingEntity(c))
	}
	return entities, nil
}

// Search runs a customer search query and returns every match
func (s *CustomerService) Search(ctx context.Context, query string) ([]*customer.BillingEntity, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	params := &stripe.CustomerSearchParams{}
	params.Query = query
	params.Limit = stripe.Int64(100)

	var entities []*customer.BillingEntity
	for c, err := range sc.V1Customers.Search(ctx, params) {
		if err != nil {
			return nil, classifyError(err, "Failed to search customers", map[string]any{
				"query": query,
			})
		}
		entities = append(entities, toBillingEntity(c))
	}
	return entities, nil
}
