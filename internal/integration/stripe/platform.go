package stripe

import (
	"github.com/flexprice/clockwork/internal/domain/clock"
	"github.com/flexprice/clockwork/internal/domain/customer"
	"github.com/flexprice/clockwork/internal/domain/invoice"
	"github.com/flexprice/clockwork/internal/domain/payment"
	"github.com/flexprice/clockwork/internal/domain/price"
	"github.com/flexprice/clockwork/internal/domain/subscription"
	"github.com/flexprice/clockwork/internal/interfaces"
	"github.com/flexprice/clockwork/internal/logger"
)

// Platform bundles the Stripe services behind interfaces.BillingPlatform
type Platform struct {
	clocks        *ClockService
	customers     *CustomerService
	payments      *PaymentService
	subscriptions *SubscriptionService
	invoices      *InvoiceService
	prices        *PriceService
}

var _ interfaces.BillingPlatform = (*Platform)(nil)

func NewPlatform(client *Client, logger *logger.Logger) *Platform {
	return &Platform{
		clocks:        NewClockService(client, logger),
		customers:     NewCustomerService(client, logger),
		payments:      NewPaymentService(client, logger),
		subscriptions: NewSubscriptionService(client, logger),
		invoices:      NewInvoiceService(client, logger),
		prices:        NewPriceService(client, logger),
	}
}

func (p *Platform) Clocks() clock.Client { return p.clocks }
func (p *Platform) ClockLister() clock.Lister { return p.clocks }
func (p *Platform) Customers() customer.Gateway { return p.customers }
func (p *Platform) PaymentMethods() payment.Gateway { return p.payments }
func (p *Platform) Subscriptions() subscription.Gateway { return p.subscriptions }
func (p *Platform) Invoices() invoice.Gateway { return p.invoices }
func (p *Platform) Prices() price.Gateway { return p.prices }
