package stripe

import (
	"github.com/flexprice/clockwork/internal/domain/clock"
	"github.com/flexprice/clockwork/internal/domain/customer"
	"github.com/flexprice/clockwork/internal/domain/invoice"
	"github.com/flexprice/clockwork/internal/domain/payment"
	"github.com/flexprice/clockwork/internal/domain/price"
	"github.com/flexprice/clockwork/internal/domain/subscription"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v82"
)

// Every SDK object is projected here exactly once. Nothing outside this
// package sees a stripe type.

// metadataKeySourceToken records which test token a payment method was
// built from, since Stripe does not echo it back.
const metadataKeySourceToken = "source_token"

func toClock(tc *stripe.TestHelpersTestClock) *clock.SimulatedClock {
	if tc == nil {
		return nil
	}
	return &clock.SimulatedClock{
		ID:         tc.ID,
		Name:       tc.Name,
		FrozenTime: tc.FrozenTime,
		Status:     types.ClockStatus(tc.Status),
		Created:    tc.Created,
	}
}

func toBillingEntity(c *stripe.Customer) *customer.BillingEntity {
	if c == nil {
		return nil
	}
	entity := &customer.BillingEntity{
		ID:           c.ID,
		Email:        c.Email,
		Name:         c.Name,
		CreationTime: c.Created,
		Metadata:     types.Metadata(c.Metadata),
	}
	if c.TestClock != nil {
		entity.ClockID = c.TestClock.ID
	}
	if c.InvoiceSettings != nil && c.InvoiceSettings.DefaultPaymentMethod != nil {
		entity.DefaultPaymentMethodID = c.InvoiceSettings.DefaultPaymentMethod.ID
	}
	return entity
}

func toPaymentMethod(pm *stripe.PaymentMethod) *payment.PaymentMethod {
	if pm == nil {
		return nil
	}
	out := &payment.PaymentMethod{
		ID:    pm.ID,
		Token: pm.Metadata[metadataKeySourceToken],
	}
	if pm.Customer != nil {
		out.CustomerID = pm.Customer.ID
	}
	if pm.Card != nil {
		out.Brand = string(pm.Card.Brand)
		out.Last4 = pm.Card.Last4
	}
	return out
}

func toInvoice(inv *stripe.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}
	out := &invoice.Invoice{
		ID:           inv.ID,
		Status:       types.InvoiceStatus(inv.Status),
		AttemptCount: inv.AttemptCount,
		Created:      inv.Created,
		AmountDue:    inv.AmountDue,
		AmountPaid:   inv.AmountPaid,
		Currency:     string(inv.Currency),
		PeriodStart:  inv.PeriodStart,
		PeriodEnd:    inv.PeriodEnd,
	}
	if inv.Customer != nil {
		out.EntityID = inv.Customer.ID
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil && inv.Parent.SubscriptionDetails.Subscription != nil {
		out.SubscriptionID = lo.ToPtr(inv.Parent.SubscriptionDetails.Subscription.ID)
	}
	// Stripe sends null once no further automatic attempt is scheduled
	if inv.NextPaymentAttempt > 0 {
		out.NextPaymentAttempt = lo.ToPtr(inv.NextPaymentAttempt)
	}
	return out
}

func toSubscription(s *stripe.Subscription) *subscription.Subscription {
	if s == nil {
		return nil
	}
	out := &subscription.Subscription{
		ID:                s.ID,
		BillingAnchor:     s.BillingCycleAnchor,
		Status:            types.SubscriptionStatus(s.Status),
		Created:           s.Created,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.Customer != nil {
		out.EntityID = s.Customer.ID
	}
	if s.CanceledAt > 0 {
		out.CanceledAt = lo.ToPtr(s.CanceledAt)
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		out.ItemID = item.ID
		out.CurrentPeriodEnd = item.CurrentPeriodEnd
		if item.Price != nil {
			out.PriceRef = item.Price.ID
		}
	}
	// An unexpanded latest_invoice carries only its id
	if s.LatestInvoice != nil && s.LatestInvoice.Status != "" {
		out.LatestInvoice = toInvoice(s.LatestInvoice)
		if out.LatestInvoice.EntityID == "" {
			out.LatestInvoice.EntityID = out.EntityID
		}
		if out.LatestInvoice.SubscriptionID == nil {
			out.LatestInvoice.SubscriptionID = lo.ToPtr(s.ID)
		}
	}
	return out
}

func toPrice(p *stripe.Price) *price.Price {
	if p == nil {
		return nil
	}
	out := &price.Price{
		ID:         p.ID,
		UnitAmount: p.UnitAmount,
		Currency:   string(p.Currency),
		Active:     p.Active,
	}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	if p.Recurring != nil {
		out.Interval = types.BillingInterval(p.Recurring.Interval)
	}
	return out
}

func toProduct(p *stripe.Product) *price.Product {
	if p == nil {
		return nil
	}
	return &price.Product{
		ID:     p.ID,
		Name:   p.Name,
		Active: p.Active,
	}
}
