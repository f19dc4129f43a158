package testutil

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/flexprice/clockwork/internal/domain/clock"
	"github.com/flexprice/clockwork/internal/domain/customer"
	"github.com/flexprice/clockwork/internal/domain/invoice"
	"github.com/flexprice/clockwork/internal/domain/payment"
	"github.com/flexprice/clockwork/internal/domain/price"
	"github.com/flexprice/clockwork/internal/domain/subscription"
	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/flexprice/clockwork/internal/interfaces"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/samber/lo"
)

const (
	TokenSuccess = "tok_visa"
	TokenDecline = "tok_chargeCustomerFail"
)

// Operation names accepted by Inject
const (
	OpCreateClock        = "clock.create"
	OpRetrieveClock      = "clock.retrieve"
	OpRequestAdvance     = "clock.request_advance"
	OpDeleteClock        = "clock.delete"
	OpCreateCustomer     = "customer.create"
	OpDeleteCustomer     = "customer.delete"
	OpAttach             = "payment_method.attach"
	OpSetDefault         = "payment_method.set_default"
	OpCreateSubscription = "subscription.create"
	OpChangePrice        = "subscription.change_price"
	OpReplaceItem        = "subscription.replace_item"
	OpCancel             = "subscription.cancel"
	OpCancelAtPeriodEnd  = "subscription.cancel_at_period_end"
	OpListInvoices       = "invoice.list"
	OpFinalize           = "invoice.finalize"
	OpPay                = "invoice.pay"
)

type simClock struct {
	clock.SimulatedClock
	pendingTarget int64
	pendingPolls  int
	stuck         bool
}

type simSubscription struct {
	subscription.Subscription
	interval      int64
	amount        int64
	currency      string
	latestInvoice string
}

// SimulatedPlatform is an in-memory billing platform with test clocks. Clock
// advances are asynchronous: a clock reports advancing for
// SettleAfterRetrieves reads before it applies the billing events up to the
// requested time.
type SimulatedPlatform struct {
	mu  sync.Mutex
	seq int

	clocks         map[string]*simClock
	customers      map[string]*customer.BillingEntity
	paymentMethods map[string]*payment.PaymentMethod
	subscriptions  map[string]*simSubscription
	invoices       map[string]*invoice.Invoice
	prices         map[string]*price.Price
	products       map[string]*price.Product
	order          map[string]int

	faults map[string][]error
	calls  map[string]int

	SettleAfterRetrieves int
	RetryInterval        int64
	MaxRetries           int64
	// LeaveDrafts keeps renewal invoices in draft so only an explicit
	// finalize and pay moves them.
	LeaveDrafts     bool
	DecliningTokens map[string]bool
}

var _ interfaces.BillingPlatform = (*SimulatedPlatform)(nil)

func NewSimulatedPlatform() *SimulatedPlatform {
	return &SimulatedPlatform{
		clocks:               make(map[string]*simClock),
		customers:            make(map[string]*customer.BillingEntity),
		paymentMethods:       make(map[string]*payment.PaymentMethod),
		subscriptions:        make(map[string]*simSubscription),
		invoices:             make(map[string]*invoice.Invoice),
		prices:               make(map[string]*price.Price),
		products:             make(map[string]*price.Product),
		order:                make(map[string]int),
		faults:               make(map[string][]error),
		calls:                make(map[string]int),
		SettleAfterRetrieves: 1,
		RetryInterval:        types.DaySeconds,
		MaxRetries:           3,
		DecliningTokens: map[string]bool{
			TokenDecline:         true,
			"tok_chargeDeclined": true,
		},
	}
}

func (p *SimulatedPlatform) Clocks() clock.Client { return &simClocks{p} }
func (p *SimulatedPlatform) ClockLister() clock.Lister { return &simClocks{p} }
func (p *SimulatedPlatform) Customers() customer.Gateway { return &simCustomers{p} }
func (p *SimulatedPlatform) PaymentMethods() payment.Gateway { return &simPayments{p} }
func (p *SimulatedPlatform) Subscriptions() subscription.Gateway { return &simSubscriptions{p} }
func (p *SimulatedPlatform) Invoices() invoice.Gateway { return &simInvoices{p} }
func (p *SimulatedPlatform) Prices() price.Gateway { return &simPrices{p} }

// Inject queues errors returned by the next calls of op, one per call
func (p *SimulatedPlatform) Inject(op string, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faults[op] = append(p.faults[op], errs...)
}

// Calls reports how many times op was invoked, including failed calls
func (p *SimulatedPlatform) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// FreezeClock makes the clock accept advances but never settle
func (p *SimulatedPlatform) FreezeClock(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clocks[id]; ok {
		c.stuck = true
	}
}

// AddPrice seeds a recurring price on a fresh product
func (p *SimulatedPlatform) AddPrice(id string, unitAmount int64, interval types.BillingInterval) *price.Price {
	p.mu.Lock()
	defer p.mu.Unlock()
	prod := &price.Product{ID: p.nextID("prod"), Name: "Seeded " + id, Active: true}
	p.products[prod.ID] = prod
	p.track(prod.ID)
	pr := &price.Price{ID: id, ProductID: prod.ID, UnitAmount: unitAmount, Currency: "usd", Interval: interval, Active: true}
	p.prices[id] = pr
	p.track(id)
	cp := *pr
	return &cp
}

// enter records a call and returns an injected fault, if any. Callers hold mu.
func (p *SimulatedPlatform) enter(op string) error {
	p.calls[op]++
	queue := p.faults[op]
	if len(queue) == 0 {
		return nil
	}
	p.faults[op] = queue[1:]
	return queue[0]
}

func (p *SimulatedPlatform) nextID(prefix string) string {
	p.seq++
	return fmt.Sprintf("%s_%06d", prefix, p.seq)
}

func (p *SimulatedPlatform) track(id string) {
	p.order[id] = p.seq
}

func (p *SimulatedPlatform) nowFor(entityID string) int64 {
	e, ok := p.customers[entityID]
	if !ok {
		return types.BaselineStart
	}
	if c, ok := p.clocks[e.ClockID]; ok {
		return c.FrozenTime
	}
	return e.CreationTime
}

func (p *SimulatedPlatform) sortedIDs(ids []string) []string {
	sort.SliceStable(ids, func(i, j int) bool { return p.order[ids[i]] < p.order[ids[j]] })
	return ids
}

// applyAdvance runs every billing event on the clock's customers up to target
// in time order, then moves the clock.
func (p *SimulatedPlatform) applyAdvance(c *simClock, target int64) {
	for {
		at, run := p.nextEvent(c.ID, target)
		if run == nil {
			break
		}
		run(at)
	}
	c.FrozenTime = target
	c.Status = types.ClockStatusReady
	c.pendingTarget = 0
}

func (p *SimulatedPlatform) nextEvent(clockID string, target int64) (int64, func(int64)) {
	best := int64(-1)
	var run func(int64)

	for _, id := range p.sortedIDs(lo.Keys(p.subscriptions)) {
		s := p.subscriptions[id]
		e, ok := p.customers[s.EntityID]
		if !ok || e.ClockID != clockID || !billable(s.Status) {
			continue
		}
		if s.CurrentPeriodEnd <= target && (best < 0 || s.CurrentPeriodEnd < best) {
			best = s.CurrentPeriodEnd
			sub := s
			run = func(at int64) { p.renew(sub, at) }
		}
	}

	for _, id := range p.sortedIDs(lo.Keys(p.invoices)) {
		inv := p.invoices[id]
		e, ok := p.customers[inv.EntityID]
		if !ok || e.ClockID != clockID || inv.Status != types.InvoiceStatusOpen || inv.NextPaymentAttempt == nil {
			continue
		}
		if *inv.NextPaymentAttempt <= target && (best < 0 || *inv.NextPaymentAttempt < best) {
			best = *inv.NextPaymentAttempt
			in := inv
			run = func(at int64) { p.charge(in, at, true) }
		}
	}
	return best, run
}

func billable(s types.SubscriptionStatus) bool {
	return s == types.SubscriptionStatusActive ||
		s == types.SubscriptionStatusPastDue ||
		s == types.SubscriptionStatusIncomplete
}

func (p *SimulatedPlatform) renew(s *simSubscription, at int64) {
	if s.CancelAtPeriodEnd {
		s.Status = types.SubscriptionStatusCanceled
		s.CanceledAt = lo.ToPtr(at)
		return
	}
	s.CurrentPeriodEnd = at + s.interval

	inv := p.newInvoice(s, at)
	if p.LeaveDrafts {
		inv.Status = types.InvoiceStatusDraft
		return
	}
	p.charge(inv, at, true)
}

func (p *SimulatedPlatform) newInvoice(s *simSubscription, at int64) *invoice.Invoice {
	inv := &invoice.Invoice{
		ID:             p.nextID("in"),
		EntityID:       s.EntityID,
		SubscriptionID: lo.ToPtr(s.ID),
		Status:         types.InvoiceStatusOpen,
		Created:        at,
		AmountDue:      s.amount,
		Currency:       s.currency,
		PeriodStart:    at,
		PeriodEnd:      at + s.interval,
	}
	p.invoices[inv.ID] = inv
	p.track(inv.ID)
	s.latestInvoice = inv.ID
	return inv
}

// charge attempts the entity's default card. Automatic attempts schedule the
// next retry until MaxRetries is used up.
func (p *SimulatedPlatform) charge(inv *invoice.Invoice, at int64, automatic bool) bool {
	inv.AttemptCount++

	var sub *simSubscription
	if inv.SubscriptionID != nil {
		sub = p.subscriptions[*inv.SubscriptionID]
	}

	if p.cardSucceeds(inv.EntityID) {
		inv.Status = types.InvoiceStatusPaid
		inv.AmountPaid = inv.AmountDue
		inv.NextPaymentAttempt = nil
		if sub != nil && sub.Status != types.SubscriptionStatusCanceled && !p.hasOpenInvoices(sub.ID) {
			sub.Status = types.SubscriptionStatusActive
		}
		return true
	}

	if automatic {
		if inv.AttemptCount <= p.MaxRetries {
			inv.NextPaymentAttempt = lo.ToPtr(at + p.RetryInterval)
		} else {
			inv.NextPaymentAttempt = nil
		}
	}
	if sub != nil {
		switch sub.Status {
		case types.SubscriptionStatusActive:
			sub.Status = types.SubscriptionStatusPastDue
		}
	}
	return false
}

func (p *SimulatedPlatform) cardSucceeds(entityID string) bool {
	e, ok := p.customers[entityID]
	if !ok || e.DefaultPaymentMethodID == "" {
		return false
	}
	pm, ok := p.paymentMethods[e.DefaultPaymentMethodID]
	if !ok || pm.CustomerID != entityID {
		return false
	}
	return !p.DecliningTokens[pm.Token]
}

func (p *SimulatedPlatform) hasOpenInvoices(subID string) bool {
	for _, inv := range p.invoices {
		if inv.SubscriptionID != nil && *inv.SubscriptionID == subID && inv.Status == types.InvoiceStatusOpen {
			return true
		}
	}
	return false
}

func notFound(kind, id string) error {
	return ierr.NewErrorf("no such %s: %s", kind, id).
		WithHintf("%s %s does not exist", kind, id).
		Mark(ierr.ErrNotFound)
}

func invalid(format string, args ...any) error {
	return ierr.NewErrorf(format, args...).Mark(ierr.ErrValidation)
}

// RateLimitedError mimics a 429 from the platform
func RateLimitedError() error {
	return ierr.NewError("too many requests").Mark(ierr.ErrRateLimited)
}

// TransientError mimics a dropped connection or 5xx
func TransientError() error {
	return ierr.NewError("connection reset by peer").Mark(ierr.ErrTransient)
}

// ValidationError mimics a rejected request
func ValidationError(msg string) error {
	return ierr.NewError(msg).Mark(ierr.ErrValidation)
}

func copyInvoice(in *invoice.Invoice) *invoice.Invoice {
	if in == nil {
		return nil
	}
	out := *in
	if in.SubscriptionID != nil {
		out.SubscriptionID = lo.ToPtr(*in.SubscriptionID)
	}
	if in.NextPaymentAttempt != nil {
		out.NextPaymentAttempt = lo.ToPtr(*in.NextPaymentAttempt)
	}
	return &out
}

func (p *SimulatedPlatform) snapshot(s *simSubscription) *subscription.Subscription {
	out := s.Subscription
	if s.CanceledAt != nil {
		out.CanceledAt = lo.ToPtr(*s.CanceledAt)
	}
	out.LatestInvoice = nil
	if s.latestInvoice != "" {
		out.LatestInvoice = copyInvoice(p.invoices[s.latestInvoice])
	}
	return &out
}

func emailSearchTerm(query string) (string, bool) {
	const prefix = `email~"`
	if !strings.HasPrefix(query, prefix) || !strings.HasSuffix(query, `"`) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(query, prefix), `"`), true
}
