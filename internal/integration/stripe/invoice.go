package stripe

import (
	"context"

	"github.com/flexprice/clockwork/internal/domain/invoice"
	"github.com/flexprice/clockwork/internal/logger"
	"github.com/stripe/stripe-go/v82"
)

// InvoiceService handles Stripe invoice operations
type InvoiceService struct {
	client *Client
	logger *logger.Logger
}

var _ invoice.Gateway = (*InvoiceService)(nil)

func NewInvoiceService(client *Client, logger *logger.Logger) *InvoiceService {
	return &InvoiceService{
		client: client,
		logger: logger,
	}
}

// List pages through every invoice of the customer
func (s *InvoiceService) List(ctx context.Context, entityID string) ([]*invoice.Invoice, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	params := &stripe.InvoiceListParams{
		Customer: stripe.String(entityID),
	}
	params.Limit = stripe.Int64(100)

	var invoices []*invoice.Invoice
	for inv, err := range sc.V1Invoices.List(ctx, params) {
		if err != nil {
			return nil, classifyError(err, "Failed to list invoices", map[string]any{
				"customer_id": entityID,
			})
		}
		invoices = append(invoices, toInvoice(inv))
	}
	return invoices, nil
}

func (s *InvoiceService) Retrieve(ctx context.Context, id string) (*invoice.Invoice, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	inv, err := sc.V1Invoices.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, classifyError(err, "Failed to retrieve invoice", map[string]any{
			"invoice_id": id,
		})
	}
	return toInvoice(inv), nil
}

func (s *InvoiceService) Finalize(ctx context.Context, id string) (*invoice.Invoice, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	inv, err := sc.V1Invoices.FinalizeInvoice(ctx, id, &stripe.InvoiceFinalizeInvoiceParams{})
	if err != nil {
		return nil, classifyError(err, "Failed to finalize invoice", map[string]any{
			"invoice_id": id,
		})
	}
	return toInvoice(inv), nil
}

// Pay charges the customer's default payment method for the invoice
func (s *InvoiceService) Pay(ctx context.Context, id string) (*invoice.Invoice, error) {
	sc, err := s.client.GetStripeClient(ctx)
	if err != nil {
		return nil, err
	}

	inv, err := sc.V1Invoices.Pay(ctx, id, &stripe.InvoicePayParams{})
	if err != nil {
		return nil, classifyError(err, "Failed to pay invoice", map[string]any{
			"invoice_id": id,
		})
	}

	s.logger.Debugw("paid stripe invoice", "invoice_id", id, "status", inv.Status)
	return toInvoice(inv), nil
}
