package testutil

import (
	"context"
	"strings"

	"github.com/flexprice/clockwork/internal/domain/clock"
	"github.com/flexprice/clockwork/internal/domain/customer"
	"github.com/flexprice/clockwork/internal/domain/invoice"
	"github.com/flexprice/clockwork/internal/domain/payment"
	"github.com/flexprice/clockwork/internal/domain/price"
	"github.com/flexprice/clockwork/internal/domain/subscription"
	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/samber/lo"
)

type simClocks struct{ p *SimulatedPlatform }

func (g *simClocks) Create(_ context.Context, frozenTime int64, name string) (*clock.SimulatedClock, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpCreateClock); err != nil {
		return nil, err
	}

	c := &simClock{SimulatedClock: clock.SimulatedClock{
		ID:         p.nextID("clock"),
		Name:       name,
		FrozenTime: frozenTime,
		Status:     types.ClockStatusReady,
		Created:    frozenTime,
	}}
	p.clocks[c.ID] = c
	p.track(c.ID)
	out := c.SimulatedClock
	return &out, nil
}

func (g *simClocks) Retrieve(_ context.Context, id string) (*clock.SimulatedClock, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpRetrieveClock); err != nil {
		return nil, err
	}

	c, ok := p.clocks[id]
	if !ok {
		return nil, notFound("test_clock", id)
	}
	if c.Status == types.ClockStatusAdvancing && !c.stuck {
		if c.pendingPolls > 0 {
			c.pendingPolls--
		} else {
			p.applyAdvance(c, c.pendingTarget)
		}
	}
	out := c.SimulatedClock
	return &out, nil
}

func (g *simClocks) RequestAdvance(_ context.Context, id string, target int64) error {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpRequestAdvance); err != nil {
		return err
	}

	c, ok := p.clocks[id]
	if !ok {
		return notFound("test_clock", id)
	}
	if c.Status == types.ClockStatusAdvancing {
		return invalid("test clock %s is already advancing", id)
	}
	if target <= c.FrozenTime {
		return invalid("frozen_time %d must be after the current frozen time %d", target, c.FrozenTime)
	}

	c.Status = types.ClockStatusAdvancing
	c.pendingTarget = target
	c.pendingPolls = p.SettleAfterRetrieves
	if c.pendingPolls <= 0 && !c.stuck {
		p.applyAdvance(c, target)
	}
	return nil
}

func (g *simClocks) List(_ context.Context) ([]*clock.SimulatedClock, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*clock.SimulatedClock, 0, len(p.clocks))
	for _, id := range p.sortedIDs(lo.Keys(p.clocks)) {
		c := p.clocks[id].SimulatedClock
		out = append(out, &c)
	}
	return out, nil
}

// Delete removes the clock and every customer bound to it
func (g *simClocks) Delete(_ context.Context, id string) error {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpDeleteClock); err != nil {
		return err
	}
	if _, ok := p.clocks[id]; !ok {
		return notFound("test_clock", id)
	}
	delete(p.clocks, id)
	for cid, e := range p.customers {
		if e.ClockID == id {
			p.deleteCustomer(cid)
		}
	}
	return nil
}

type simCustomers struct{ p *SimulatedPlatform }

func (g *simCustomers) Create(_ context.Context, params *customer.CreateParams) (*customer.BillingEntity, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpCreateCustomer); err != nil {
		return nil, err
	}

	created := types.BaselineStart
	if params.ClockID != "" {
		c, ok := p.clocks[params.ClockID]
		if !ok {
			return nil, notFound("test_clock", params.ClockID)
		}
		created = c.FrozenTime
	}

	e := &customer.BillingEntity{
		ID:           p.nextID("cus"),
		Email:        params.Email,
		Name:         params.Name,
		ClockID:      params.ClockID,
		CreationTime: created,
		Metadata:     lo.Assign(types.Metadata{}, params.Metadata),
	}
	p.customers[e.ID] = e
	p.track(e.ID)
	out := *e
	return &out, nil
}

func (g *simCustomers) Delete(_ context.Context, id string) error {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpDeleteCustomer); err != nil {
		return err
	}
	if _, ok := p.customers[id]; !ok {
		return notFound("customer", id)
	}
	p.deleteCustomer(id)
	return nil
}

func (p *SimulatedPlatform) deleteCustomer(id string) {
	delete(p.customers, id)
	for _, s := range p.subscriptions {
		if s.EntityID == id && s.Status != types.SubscriptionStatusCanceled {
			s.Status = types.SubscriptionStatusCanceled
		}
	}
}

func (g *simCustomers) List(_ context.Context) ([]*customer.BillingEntity, error) {
	return g.filter(func(*customer.BillingEntity) bool { return true }), nil
}

func (g *simCustomers) Search(_ context.Context, query string) ([]*customer.BillingEntity, error) {
	term, ok := emailSearchTerm(query)
	if !ok {
		return nil, invalid("unsupported search query %q", query)
	}
	return g.filter(func(e *customer.BillingEntity) bool {
		return strings.Contains(e.Email, term)
	}), nil
}

func (g *simCustomers) filter(keep func(*customer.BillingEntity) bool) []*customer.BillingEntity {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()

	out := []*customer.BillingEntity{}
	for _, id := range p.sortedIDs(lo.Keys(p.customers)) {
		e := p.customers[id]
		if keep(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

type simPayments struct{ p *SimulatedPlatform }

func (g *simPayments) CreateFromToken(_ context.Context, token string) (*payment.PaymentMethod, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()

	last4 := "4242"
	if p.DecliningTokens[token] {
		last4 = "0341"
	}
	pm := &payment.PaymentMethod{ID: p.nextID("pm"), Token: token, Brand: "visa", Last4: last4}
	p.paymentMethods[pm.ID] = pm
	p.track(pm.ID)
	out := *pm
	return &out, nil
}

func (g *simPayments) Attach(_ context.Context, paymentMethodID, entityID string) error {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpAttach); err != nil {
		return err
	}

	pm, ok := p.paymentMethods[paymentMethodID]
	if !ok {
		return notFound("payment_method", paymentMethodID)
	}
	if _, ok := p.customers[entityID]; !ok {
		return notFound("customer", entityID)
	}
	if pm.CustomerID != "" && pm.CustomerID != entityID {
		return invalid("payment method %s is attached to another customer", paymentMethodID)
	}
	pm.CustomerID = entityID
	return nil
}

func (g *simPayments) Retrieve(_ context.Context, id string) (*payment.PaymentMethod, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()

	pm, ok := p.paymentMethods[id]
	if !ok {
		return nil, notFound("payment_method", id)
	}
	out := *pm
	return &out, nil
}

func (g *simPayments) SetDefault(_ context.Context, entityID, paymentMethodID string) error {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpSetDefault); err != nil {
		return err
	}

	e, ok := p.customers[entityID]
	if !ok {
		return notFound("customer", entityID)
	}
	pm, ok := p.paymentMethods[paymentMethodID]
	if !ok {
		return notFound("payment_method", paymentMethodID)
	}
	if pm.CustomerID != entityID {
		return invalid("payment method %s must be attached to %s before use", paymentMethodID, entityID)
	}
	e.DefaultPaymentMethodID = paymentMethodID
	return nil
}

type simSubscriptions struct{ p *SimulatedPlatform }

func (g *simSubscriptions) Create(_ context.Context, params *subscription.CreateParams) (*subscription.Subscription, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpCreateSubscription); err != nil {
		return nil, err
	}

	if _, ok := p.customers[params.EntityID]; !ok {
		return nil, notFound("customer", params.EntityID)
	}
	pr, ok := p.prices[params.PriceRef]
	if !ok {
		return nil, notFound("price", params.PriceRef)
	}

	now := p.nowFor(params.EntityID)
	s := &simSubscription{
		Subscription: subscription.Subscription{
			ID:       p.nextID("sub"),
			EntityID: params.EntityID,
			PriceRef: pr.ID,
			Status:   types.SubscriptionStatusActive,
			Created:  now,
		},
		interval: pr.Interval.Seconds(),
		amount:   pr.UnitAmount,
		currency: pr.Currency,
	}
	s.ItemID = p.nextID("si")
	p.subscriptions[s.ID] = s
	p.track(s.ID)

	if params.BillingAnchor != nil && *params.BillingAnchor > now {
		s.BillingAnchor = *params.BillingAnchor
		s.CurrentPeriodEnd = *params.BillingAnchor
		return p.snapshot(s), nil
	}

	s.BillingAnchor = now
	s.CurrentPeriodEnd = now + s.interval
	inv := p.newInvoice(s, now)
	if !p.charge(inv, now, false) {
		s.Status = types.SubscriptionStatusIncomplete
	}
	return p.snapshot(s), nil
}

func (g *simSubscriptions) Retrieve(_ context.Context, id string) (*subscription.Subscription, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.subscriptions[id]
	if !ok {
		return nil, notFound("subscription", id)
	}
	return p.snapshot(s), nil
}

func (g *simSubscriptions) ChangePrice(_ context.Context, id, itemID, priceRef string, _ types.ProrationBehavior) (*subscription.Subscription, error) {
	return g.swapPrice(OpChangePrice, id, itemID, priceRef, false)
}

func (g *simSubscriptions) ReplaceItem(_ context.Context, id, itemID, priceRef string, _ types.ProrationBehavior) (*subscription.Subscription, error) {
	return g.swapPrice(OpReplaceItem, id, itemID, priceRef, true)
}

func (g *simSubscriptions) swapPrice(op, id, itemID, priceRef string, newItem bool) (*subscription.Subscription, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(op); err != nil {
		return nil, err
	}

	s, ok := p.subscriptions[id]
	if !ok {
		return nil, notFound("subscription", id)
	}
	if s.Status == types.SubscriptionStatusCanceled {
		return nil, invalid("subscription %s is canceled", id)
	}
	if s.ItemID != itemID {
		return nil, notFound("subscription_item", itemID)
	}
	pr, ok := p.prices[priceRef]
	if !ok {
		return nil, notFound("price", priceRef)
	}

	s.PriceRef = pr.ID
	s.amount = pr.UnitAmount
	s.interval = pr.Interval.Seconds()
	if newItem {
		s.ItemID = p.nextID("si")
	}
	return p.snapshot(s), nil
}

func (g *simSubscriptions) CancelAtPeriodEnd(_ context.Context, id string) (*subscription.Subscription, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpCancelAtPeriodEnd); err != nil {
		return nil, err
	}

	s, ok := p.subscriptions[id]
	if !ok {
		return nil, notFound("subscription", id)
	}
	s.CancelAtPeriodEnd = true
	return p.snapshot(s), nil
}

func (g *simSubscriptions) Cancel(_ context.Context, id string) (*subscription.Subscription, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpCancel); err != nil {
		return nil, err
	}

	s, ok := p.subscriptions[id]
	if !ok {
		return nil, notFound("subscription", id)
	}
	if s.Status == types.SubscriptionStatusCanceled {
		return nil, invalid("subscription %s is already canceled", id)
	}
	s.Status = types.SubscriptionStatusCanceled
	s.CanceledAt = lo.ToPtr(p.nowFor(s.EntityID))
	return p.snapshot(s), nil
}

func (g *simSubscriptions) List(_ context.Context, entityID string) ([]*subscription.Subscription, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()

	out := []*subscription.Subscription{}
	for _, id := range p.sortedIDs(lo.Keys(p.subscriptions)) {
		s := p.subscriptions[id]
		if entityID == "" || s.EntityID == entityID {
			out = append(out, p.snapshot(s))
		}
	}
	return out, nil
}

type simInvoices struct{ p *SimulatedPlatform }

// List returns newest first like the platform does
func (g *simInvoices) List(_ context.Context, entityID string) ([]*invoice.Invoice, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpListInvoices); err != nil {
		return nil, err
	}

	ids := p.sortedIDs(lo.Keys(p.invoices))
	out := []*invoice.Invoice{}
	for i := len(ids) - 1; i >= 0; i-- {
		inv := p.invoices[ids[i]]
		if entityID == "" || inv.EntityID == entityID {
			out = append(out, copyInvoice(inv))
		}
	}
	return out, nil
}

func (g *simInvoices) Retrieve(_ context.Context, id string) (*invoice.Invoice, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()

	inv, ok := p.invoices[id]
	if !ok {
		return nil, notFound("invoice", id)
	}
	return copyInvoice(inv), nil
}

func (g *simInvoices) Finalize(_ context.Context, id string) (*invoice.Invoice, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpFinalize); err != nil {
		return nil, err
	}

	inv, ok := p.invoices[id]
	if !ok {
		return nil, notFound("invoice", id)
	}
	if inv.Status != types.InvoiceStatusDraft {
		return nil, invalid("invoice %s is %s, only drafts can be finalized", id, inv.Status)
	}
	inv.Status = types.InvoiceStatusOpen
	return copyInvoice(inv), nil
}

func (g *simInvoices) Pay(_ context.Context, id string) (*invoice.Invoice, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpPay); err != nil {
		return nil, err
	}

	inv, ok := p.invoices[id]
	if !ok {
		return nil, notFound("invoice", id)
	}
	if !inv.Status.IsPayable() {
		return nil, invalid("invoice %s is %s and cannot be paid", id, inv.Status)
	}
	inv.Status = types.InvoiceStatusOpen
	if !p.charge(inv, p.nowFor(inv.EntityID), false) {
		return nil, ierr.NewErrorf("card declined for invoice %s", id).
			WithHint("Your card was declined").
			Mark(ierr.ErrPaymentFailed)
	}
	return copyInvoice(inv), nil
}

type simPrices struct{ p *SimulatedPlatform }

func (g *simPrices) Retrieve(_ context.Context, id string) (*price.Price, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()

	pr, ok := p.prices[id]
	if !ok {
		return nil, notFound("price", id)
	}
	out := *pr
	return &out, nil
}

func (g *simPrices) ListByProduct(_ context.Context, productID string) ([]*price.Price, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()

	out := []*price.Price{}
	for _, id := range p.sortedIDs(lo.Keys(p.prices)) {
		if pr := p.prices[id]; pr.ProductID == productID {
			cp := *pr
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (g *simPrices) CreateProduct(_ context.Context, name string) (*price.Product, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()

	prod := &price.Product{ID: p.nextID("prod"), Name: name, Active: true}
	p.products[prod.ID] = prod
	p.track(prod.ID)
	out := *prod
	return &out, nil
}

func (g *simPrices) CreatePrice(_ context.Context, params *price.CreatePriceParams) (*price.Price, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.products[params.ProductID]; !ok {
		return nil, notFound("product", params.ProductID)
	}
	pr := &price.Price{
		ID:         p.nextID("price"),
		ProductID:  params.ProductID,
		UnitAmount: params.UnitAmount,
		Currency:   params.Currency,
		Interval:   params.Interval,
		Active:     true,
	}
	p.prices[pr.ID] = pr
	p.track(pr.ID)
	out := *pr
	return &out, nil
}

func (g *simPrices) ListProducts(_ context.Context) ([]*price.Product, error) {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()

	out := []*price.Product{}
	for _, id := range p.sortedIDs(lo.Keys(p.products)) {
		cp := *p.products[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (g *simPrices) ArchivePrice(_ context.Context, id string) error {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()

	pr, ok := p.prices[id]
	if !ok {
		return notFound("price", id)
	}
	pr.Active = false
	return nil
}

// DeleteProduct archives instead when prices still reference the product
func (g *simPrices) DeleteProduct(_ context.Context, id string) error {
	p := g.p
	p.mu.Lock()
	defer p.mu.Unlock()

	prod, ok := p.products[id]
	if !ok {
		return notFound("product", id)
	}
	for _, pr := range p.prices {
		if pr.ProductID == id {
			prod.Active = false
			return nil
		}
	}
	delete(p.products, id)
	return nil
}
