package interfaces

import (
	"github.com/flexprice/clockwork/internal/domain/clock"
	"github.com/flexprice/clockwork/internal/domain/customer"
	"github.com/flexprice/clockwork/internal/domain/invoice"
	"github.com/flexprice/clockwork/internal/domain/payment"
	"github.com/flexprice/clockwork/internal/domain/price"
	"github.com/flexprice/clockwork/internal/domain/subscription"
)

// BillingPlatform is every remote operation the services need. The Stripe
// integration and the in-memory simulator in testutil both satisfy it.
type BillingPlatform interface {
	Clocks() clock.Client
	ClockLister() clock.Lister
	Customers() customer.Gateway
	PaymentMethods() payment.Gateway
	Subscriptions() subscription.Gateway
	Invoices() invoice.Gateway
	Prices() price.Gateway
}
