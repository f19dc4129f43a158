package stripe

import (
	"context"

	"github.com/flexprice/clockwork/internal/domain/payment"
	"github.com/flexprice/clockwork/internal/logger"
	"github.com/stripe/stripe-go/v82"
)

// PaymentService handles Stripe payment method operations
type PaymentService struct {
	client *Client
	logger *logger.Logger
}

var _ payment.Gateway = (*PaymentService)(nil)

func NewPaymentService(client *Client, logger *logger.Logger) *PaymentService {
	return &PaymentService{
		client: client,
		logger: logger,
	}
}

// CreateFromToken builds a card payment method from a test token such as
// tok_visa or tok_chargeCustomerFail
func (s *PaymentService) CreateFromToken(ctx context.Context, token string) (*payment.PaymentMethod, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentMethodCreateParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCreateCardParams{
			Token: stripe.String(token),
		},
	}
	params.AddMetadata(metadataKeySourceToken, token)

	pm, err := sc.V1PaymentMethods.Create(ctx, params)
	if err != nil {
		return nil, classifyError(err, "Failed to create payment method from token", map[string]any{
			"token": token,
		})
	}

	out := toPaymentMethod(pm)
	out.Token = token
	return out, nil
}

func (s *PaymentService) Attach(ctx context.Context, paymentMethodID, entityID string) error {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return err
	}

	params := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(entityID),
	}
	if _, err := sc.V1PaymentMethods.Attach(ctx, paymentMethodID, params); err != nil {
		return classifyError(err, "Failed to attach payment method", map[string]any{
			"payment_method_id": paymentMethodID,
			"customer_id":       entityID,
		})
	}
	return nil
}

func (s *PaymentService) Retrieve(ctx context.Context, id string) (*payment.PaymentMethod, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	pm, err := sc.V1PaymentMethods.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, classifyError(err, "Failed to retrieve payment method", map[string]any{
			"payment_method_id": id,
		})
	}
	return toPaymentMethod(pm), nil
}

// SetDefault points the customer's invoice settings at the payment method
func (s *PaymentService) SetDefault(ctx context.Context, entityID, paymentMethodID string) error {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return err
	}

	params := &stripe.CustomerUpdateParams{
		InvoiceSettings: &stripe.CustomerUpdateInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	if _, err := sc.V1Customers.Update(ctx, entityID, params); err != nil {
		return classifyError(err, "Failed to set default payment method", map[string]any{
			"payment_method_id": paymentMethodID,
			"customer_id":       entityID,
		})
	}

	s.logger.Debugw("set default payment method",
		"customer_id", entityID,
		"payment_method_id", paymentMethodID)
	return nil
}
