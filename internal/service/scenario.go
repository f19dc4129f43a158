package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/flexprice/clockwork/internal/domain/customer"
	"github.com/flexprice/clockwork/internal/domain/invoice"
	"github.com/flexprice/clockwork/internal/domain/payment"
	"github.com/flexprice/clockwork/internal/domain/subscription"
	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/flexprice/clockwork/internal/validator"
	"github.com/samber/lo"
)

// ScenarioService drives billing entities through their trajectories, one
// entity at a time.
type ScenarioService interface {
	// Run processes plans in order. An entity whose clock cannot be advanced
	// is aborted and the batch moves on; a cancelled ctx stops the batch.
	Run(ctx context.Context, plans []*EntityPlan) (*RunSummary, error)
	RunEntity(ctx context.Context, plan *EntityPlan) (*EntityResult, error)
	RunID() string
}

// EntityPlan is the sampled script for one simulated customer. Months is the
// number of monthly cycles to simulate from the entity's creation.
type EntityPlan struct {
	Index           int              `validate:"gte=1"`
	Email           string           `validate:"required,email"`
	Name            string           `validate:"required"`
	Trajectory      types.Trajectory `validate:"required,trajectory"`
	PriceRef        string           `validate:"required"`
	UpgradePriceRef string           `validate:"required_if=Trajectory upgrade"`
	Annual          bool
	CreationMonth   int `validate:"gte=0"`
	Months          int `validate:"gte=1"`
	PaidMonths      int `validate:"gte=0"`
	PastDueMonths   int `validate:"gte=0"`
	CancelAfter     int `validate:"gte=0"`
	UpgradeAfter    int `validate:"gte=0"`
}

// EntityResult is both the per-entity outcome and the exported record
type EntityResult struct {
	Index              int                      `json:"index" csv:"index"`
	Email              string                   `json:"email" csv:"email"`
	EntityID           string                   `json:"id" csv:"customer_id"`
	ClockID            string                   `json:"clock_id" csv:"clock_id"`
	SubscriptionID     string                   `json:"subscription_id" csv:"subscription_id"`
	Trajectory         types.Trajectory         `json:"trajectory" csv:"trajectory"`
	PriceRef           string                   `json:"price_id" csv:"price_id"`
	Annual             bool                     `json:"annual" csv:"annual"`
	CreationMonth      int                      `json:"creation_month" csv:"creation_month"`
	PaidMonths         int                      `json:"paid_months" csv:"paid_months"`
	PastDueMonths      int                      `json:"past_due_months" csv:"past_due_months"`
	CancelAfter        int                      `json:"cancel_after,omitempty" csv:"cancel_after"`
	UpgradeAfter       int                      `json:"upgrade_after,omitempty" csv:"upgrade_after"`
	State              types.TrajectoryState    `json:"state" csv:"state"`
	States             []types.TrajectoryState  `json:"states" csv:"-"`
	MonthsSimulated    int                      `json:"months_simulated" csv:"months_simulated"`
	DunningOutcome     types.DunningOutcome     `json:"dunning_outcome,omitempty" csv:"dunning_outcome"`
	PastDueObserved    bool                     `json:"past_due_observed" csv:"past_due_observed"`
	Upgraded           bool                     `json:"upgraded" csv:"upgraded"`
	Canceled           bool                     `json:"canceled" csv:"canceled"`
	SubscriptionStatus types.SubscriptionStatus `json:"subscription_status" csv:"subscription_status"`
	InvoicesPaid       int                      `json:"invoices_paid" csv:"invoices_paid"`
	InvoicesUnpaid     int                      `json:"invoices_unpaid" csv:"invoices_unpaid"`
	ReconcilePaid      int                      `json:"reconcile_paid" csv:"reconcile_paid"`
	ClockFrozenTime    int64                    `json:"clock_frozen_time" csv:"clock_frozen_time"`
	Error              string                   `json:"error,omitempty" csv:"error"`
}

// RunSummary aggregates entity results once each entity has finished
type RunSummary struct {
	RunID           string          `json:"run_id"`
	Entities        []*EntityResult `json:"entities"`
	CreatedEntities int             `json:"created_customers"`
	Subscriptions   int             `json:"subscriptions"`
	InvoicesPaid    int             `json:"invoices_paid"`
	InvoicesUnpaid  int             `json:"invoices_unpaid"`
	Upgrades        int             `json:"upgrades"`
	Cancellations   int             `json:"cancellations"`
	Aborted         int             `json:"aborted"`
	AbortedEntities []string        `json:"aborted_entities,omitempty"`
}

func (r *RunSummary) add(res *EntityResult) {
	r.Entities = append(r.Entities, res)
	if res.EntityID != "" {
		r.CreatedEntities++
	}
	if res.SubscriptionID != "" {
		r.Subscriptions++
	}
	r.InvoicesPaid += res.InvoicesPaid
	r.InvoicesUnpaid += res.InvoicesUnpaid
	if res.Upgraded {
		r.Upgrades++
	}
	if res.Canceled {
		r.Cancellations++
	}
	if res.State == types.TrajectoryStateAborted {
		r.Aborted++
		r.AbortedEntities = append(r.AbortedEntities, res.Email)
	}
}

type scenarioService struct {
	ServiceParams
	advancer   ClockAdvancer
	dunning    DunningAdvancer
	reconciler InvoiceReconciler
	runID      string
}

func NewScenarioService(
	params ServiceParams,
	advancer ClockAdvancer,
	dunning DunningAdvancer,
	reconciler InvoiceReconciler,
) ScenarioService {
	return &scenarioService{
		ServiceParams: params,
		advancer:      advancer,
		dunning:       dunning,
		reconciler:    reconciler,
		runID:         types.NewRunID(),
	}
}

func (s *scenarioService) RunID() string {
	return s.runID
}

// entityRun is the orchestrator's private view of one entity in flight
type entityRun struct {
	plan           *EntityPlan
	result         *EntityResult
	clockID        string
	entityID       string
	subscriptionID string
	itemID         string
	anchor         int64
	frozen         int64
	cycle          int64
}

func (r *entityRun) enter(state types.TrajectoryState) {
	r.result.State = state
	r.result.States = append(r.result.States, state)
}

// catchUp moves r.cycle to the cycle that target actually crossed. It
// reports how many boundaries were skipped because the clock was already
// past the requested one.
func (r *entityRun) catchUp(target int64) int64 {
	crossed := CycleIndexAt(r.anchor, target, types.MonthSeconds)
	if crossed <= r.cycle {
		return 0
	}
	skipped := crossed - r.cycle
	r.cycle = crossed
	return skipped
}

func (s *scenarioService) Run(ctx context.Context, plans []*EntityPlan) (*RunSummary, error) {
	summary := &RunSummary{RunID: s.runID}

	for i, plan := range plans {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		s.Logger.Infow("starting entity",
			"run_id", s.runID,
			"position", i+1,
			"total", len(plans),
			"email", plan.Email,
			"trajectory", plan.Trajectory,
		)

		res, err := s.RunEntity(ctx, plan)
		summary.add(res)
		if err != nil && ctx.Err() != nil {
			return summary, ctx.Err()
		}
	}

	s.Logger.Infow("run finished",
		"run_id", s.runID,
		"created_customers", summary.CreatedEntities,
		"subscriptions", summary.Subscriptions,
		"invoices_paid", summary.InvoicesPaid,
		"invoices_unpaid", summary.InvoicesUnpaid,
		"upgrades", summary.Upgrades,
		"cancellations", summary.Cancellations,
		"aborted", summary.Aborted,
	)
	return summary, nil
}

func (s *scenarioService) RunEntity(ctx context.Context, plan *EntityPlan) (*EntityResult, error) {
	r := &entityRun{
		plan: plan,
		result: &EntityResult{
			Index:         plan.Index,
			Email:         plan.Email,
			Trajectory:    plan.Trajectory,
			PriceRef:      plan.PriceRef,
			Annual:        plan.Annual,
			CreationMonth: plan.CreationMonth,
			PaidMonths:    plan.PaidMonths,
			PastDueMonths: plan.PastDueMonths,
			CancelAfter:   plan.CancelAfter,
			UpgradeAfter:  plan.UpgradeAfter,
		},
	}
	r.enter(types.TrajectoryStateNew)

	err := s.drive(ctx, r)
	if err != nil {
		return s.abort(r, err), err
	}

	if !r.result.Canceled {
		r.enter(types.TrajectoryStateDone)
	}
	s.Metrics.EntityFinished(plan.Trajectory.String(), r.result.State.String())
	s.Logger.Infow("entity finished",
		"email", plan.Email,
		"customer_id", r.entityID,
		"state", r.result.State,
		"months_simulated", r.result.MonthsSimulated,
		"invoices_paid", r.result.InvoicesPaid,
		"invoices_unpaid", r.result.InvoicesUnpaid,
	)
	return r.result, nil
}

func (s *scenarioService) drive(ctx context.Context, r *entityRun) error {
	if err := validator.ValidateRequest(r.plan); err != nil {
		return err
	}
	if err := s.setup(ctx, r); err != nil {
		return err
	}

	var err error
	switch r.plan.Trajectory {
	case types.TrajectorySteadyActive, types.TrajectoryCancelAfter:
		err = s.runCalendar(ctx, r)
	case types.TrajectoryFailRecover:
		err = s.runRecover(ctx, r)
	case types.TrajectoryFailLinger:
		err = s.runLinger(ctx, r)
	case types.TrajectoryUpgrade:
		err = s.runUpgrade(ctx, r)
	}
	if err != nil {
		return err
	}

	if err := s.settle(ctx, r); err != nil {
		return err
	}
	return s.collect(ctx, r)
}

func (s *scenarioService) abort(r *entityRun, err error) *EntityResult {
	r.enter(types.TrajectoryStateAborted)
	r.result.Error = err.Error()
	r.result.ClockFrozenTime = r.frozen

	s.Metrics.EntityFinished(r.plan.Trajectory.String(), r.result.State.String())
	s.Sentry.CaptureWithTags(err, map[string]string{
		"entity_id":  r.entityID,
		"clock_id":   r.clockID,
		"trajectory": r.plan.Trajectory.String(),
	})
	s.Logger.Errorw("entity aborted",
		"email", r.plan.Email,
		"customer_id", r.entityID,
		"clock_id", r.clockID,
		"trajectory", r.plan.Trajectory,
		"trajectory_abort", ierr.IsTrajectoryAbort(err),
		"error", err,
	)
	return r.result
}

func (s *scenarioService) startTime(plan *EntityPlan) int64 {
	start := s.Config.Scenario.StartTime
	switch plan.Trajectory {
	case types.TrajectorySteadyActive, types.TrajectoryCancelAfter:
		return start + int64(plan.CreationMonth)*types.MonthSeconds
	default:
		return start
	}
}

// setup creates the clock, customer, working card and subscription
func (s *scenarioService) setup(ctx context.Context, r *entityRun) error {
	start := s.startTime(r.plan)
	name := fmt.Sprintf("%s%d_%d", s.Config.Scenario.ClockNamePrefix, r.plan.Index, time.Now().Unix())

	err := s.remote(ctx, func() error {
		c, err := s.Platform.Clocks().Create(ctx, start, name)
		if err == nil {
			r.clockID = c.ID
			r.frozen = c.FrozenTime
		}
		return err
	})
	if err != nil {
		return err
	}
	r.result.ClockID = r.clockID

	metadata := types.Metadata{
		types.MetadataKeyRunID:      s.runID,
		types.MetadataKeyTrajectory: r.plan.Trajectory.String(),
		types.MetadataKeyIndex:      strconv.Itoa(r.plan.Index),
	}
	err = s.remote(ctx, func() error {
		e, err := s.Platform.Customers().Create(ctx, &customer.CreateParams{
			Email:    r.plan.Email,
			Name:     r.plan.Name,
			ClockID:  r.clockID,
			Metadata: metadata,
		})
		if err == nil {
			r.entityID = e.ID
		}
		return err
	})
	if err != nil {
		return err
	}
	r.result.EntityID = r.entityID

	if _, err := s.bindCard(ctx, r.entityID, s.Config.Scenario.SuccessToken); err != nil {
		return err
	}

	var anchor *int64
	if r.plan.Trajectory.IsFailing() {
		anchor = lo.ToPtr(r.frozen + types.DurationSeconds(s.Config.Scenario.AnchorOffset))
	}
	sub, err := s.createSubscription(ctx, r, r.plan.PriceRef, anchor, metadata)
	if err != nil {
		return err
	}
	r.anchor = sub.BillingAnchor

	s.Logger.Infow("entity created",
		"email", r.plan.Email,
		"customer_id", r.entityID,
		"clock_id", r.clockID,
		"subscription_id", r.subscriptionID,
		"billing_anchor", types.FormatUnix(r.anchor),
	)
	return nil
}

func (s *scenarioService) createSubscription(ctx context.Context, r *entityRun, priceRef string, anchor *int64, metadata types.Metadata) (*subscription.Subscription, error) {
	var sub *subscription.Subscription
	err := s.remote(ctx, func() error {
		var err error
		sub, err = s.Platform.Subscriptions().Create(ctx, &subscription.CreateParams{
			EntityID:      r.entityID,
			PriceRef:      priceRef,
			BillingAnchor: anchor,
			Metadata:      metadata,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	r.subscriptionID = sub.ID
	r.itemID = sub.ItemID
	r.result.SubscriptionID = sub.ID
	return sub, nil
}

// bindCard creates a card from token and makes it the entity's default. The
// attachment is verified and repeated once when the platform did not keep it.
func (s *scenarioService) bindCard(ctx context.Context, entityID, token string) (*payment.PaymentMethod, error) {
	methods := s.Platform.PaymentMethods()

	var pm *payment.PaymentMethod
	err := s.remote(ctx, func() error {
		var err error
		pm, err = methods.CreateFromToken(ctx, token)
		return err
	})
	if err != nil {
		return nil, err
	}

	attach := func() error {
		return s.remote(ctx, func() error { return methods.Attach(ctx, pm.ID, entityID) })
	}
	setDefault := func() error {
		return s.remote(ctx, func() error { return methods.SetDefault(ctx, entityID, pm.ID) })
	}

	if err := attach(); err != nil {
		return nil, err
	}
	if got, err := methods.Retrieve(ctx, pm.ID); err == nil && got.CustomerID != entityID {
		s.Logger.Warnw("payment method not attached after attach, retrying", "payment_method_id", pm.ID, "customer_id", entityID)
		if err := attach(); err != nil {
			return nil, err
		}
	}

	if err := setDefault(); err != nil {
		s.Logger.Warnw("failed to set default payment method, re-attaching", "payment_method_id", pm.ID, "error", err)
		if aerr := attach(); aerr != nil {
			s.Logger.Warnw("re-attach failed", "payment_method_id", pm.ID, "error", aerr)
		}
		if err := setDefault(); err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Could not make payment method %s the default for %s", pm.ID, entityID).
				Mark(ierr.ErrHTTPClient)
		}
	}
	return pm, nil
}

// advanceCycle crosses cycle index r.cycle counted from the anchor
func (s *scenarioService) advanceCycle(ctx context.Context, r *entityRun) error {
	target := NextCycleAfter(r.anchor, r.cycle, r.frozen, types.MonthSeconds)
	if err := s.advanceTo(ctx, r, target); err != nil {
		return err
	}
	if skipped := r.catchUp(target); skipped > 0 {
		s.Logger.Warnw("clock was past the requested cycle, continuing from the crossed one",
			"clock_id", r.clockID,
			"cycle", r.cycle,
			"skipped", skipped,
		)
	}
	r.result.MonthsSimulated++
	return nil
}

func (s *scenarioService) advanceTo(ctx context.Context, r *entityRun, target int64) error {
	c, err := s.advancer.Advance(ctx, r.clockID, target)
	if err != nil {
		return err
	}
	r.frozen = c.FrozenTime
	return nil
}

func (s *scenarioService) reconcile(ctx context.Context, r *entityRun) {
	res, err := s.reconciler.Reconcile(ctx, r.entityID)
	if err != nil {
		s.Logger.Warnw("reconcile failed, next pass will retry", "customer_id", r.entityID, "error", err)
		return
	}
	r.result.ReconcilePaid += res.PaidCount
}

func (s *scenarioService) runDunning(ctx context.Context, r *entityRun) error {
	res, err := s.dunning.AdvanceThroughRetries(ctx, r.clockID, r.subscriptionID, s.Config.Dunning.Buffer, s.Config.Dunning.MaxRounds)
	if err != nil {
		return err
	}
	r.result.DunningOutcome = res.Outcome
	if res.SubscriptionStatus == types.SubscriptionStatusPastDue {
		r.result.PastDueObserved = true
	}

	c, err := s.advancer.Current(ctx, r.clockID)
	if err != nil {
		return err
	}
	r.frozen = c.FrozenTime
	return nil
}

// runCalendar pays month after month and cancels once CancelAfter months
// have been billed, when the plan asks for it. The creation invoice bills
// month one, so Months periods end at renewal Months-1.
func (s *scenarioService) runCalendar(ctx context.Context, r *entityRun) error {
	r.enter(types.TrajectoryStatePaidMonths)

	for m := 0; m < r.plan.Months; m++ {
		if err := s.billPeriod(ctx, r, m); err != nil {
			return err
		}
		s.reconcile(ctx, r)

		if r.plan.Trajectory == types.TrajectoryCancelAfter && m+1 >= r.plan.CancelAfter {
			if s.cancel(ctx, r, r.subscriptionID) {
				r.result.Canceled = true
				r.enter(types.TrajectoryStateCanceled)
			}
			return nil
		}
	}

	r.enter(types.TrajectoryStateActiveSteady)
	return nil
}

// billPeriod moves a calendar entity into period m. Period zero was billed
// when the subscription was created.
func (s *scenarioService) billPeriod(ctx context.Context, r *entityRun, m int) error {
	if m == 0 {
		r.result.MonthsSimulated++
		return nil
	}
	r.cycle = int64(m)
	return s.advanceCycle(ctx, r)
}

// failFirstCycles pays PaidMonths cycles, then switches to a declining card
// and crosses the next boundary so the platform starts dunning.
func (s *scenarioService) failFirstCycles(ctx context.Context, r *entityRun) error {
	r.enter(types.TrajectoryStatePaidMonths)
	for i := 0; i < r.plan.PaidMonths; i++ {
		r.cycle = int64(i)
		if err := s.advanceCycle(ctx, r); err != nil {
			return err
		}
		s.reconcile(ctx, r)
	}

	r.enter(types.TrajectoryStateSwitchToFailing)
	if _, err := s.bindCard(ctx, r.entityID, s.Config.Scenario.FailToken); err != nil {
		return err
	}
	r.cycle = int64(r.plan.PaidMonths)
	if err := s.advanceCycle(ctx, r); err != nil {
		return err
	}

	r.enter(types.TrajectoryStatePastDue)
	return s.runDunning(ctx, r)
}

func (s *scenarioService) runRecover(ctx context.Context, r *entityRun) error {
	if err := s.failFirstCycles(ctx, r); err != nil {
		return err
	}

	pastDue := lo.Max([]int{r.plan.PastDueMonths, 1})
	for j := 0; j < pastDue-1; j++ {
		r.cycle++
		if err := s.advanceCycle(ctx, r); err != nil {
			return err
		}
		if err := s.runDunning(ctx, r); err != nil {
			return err
		}
	}

	// The working card must be in place before the next boundary
	r.cycle++
	if _, err := s.bindCard(ctx, r.entityID, s.Config.Scenario.SuccessToken); err != nil {
		return err
	}
	s.reconcile(ctx, r)
	if err := s.advanceCycle(ctx, r); err != nil {
		return err
	}
	s.reconcile(ctx, r)
	r.enter(types.TrajectoryStateRecovered)

	for done := r.plan.PaidMonths + pastDue + 1; done < r.plan.Months; done++ {
		r.cycle++
		if err := s.advanceCycle(ctx, r); err != nil {
			return err
		}
		s.reconcile(ctx, r)
	}
	return nil
}

func (s *scenarioService) runLinger(ctx context.Context, r *entityRun) error {
	if err := s.failFirstCycles(ctx, r); err != nil {
		return err
	}
	r.enter(types.TrajectoryStateLingering)

	for done := r.plan.PaidMonths + 1; done < r.plan.Months; done++ {
		r.cycle++
		if err := s.advanceCycle(ctx, r); err != nil {
			return err
		}
		if err := s.runDunning(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// runUpgrade bills monthly on the base price and, in period UpgradeAfter,
// moves to mid-month before switching to the upgrade price.
func (s *scenarioService) runUpgrade(ctx context.Context, r *entityRun) error {
	r.enter(types.TrajectoryStatePaidMonths)
	midMonth := int64(s.Config.Scenario.UpgradeMidMonthDays) * types.DaySeconds

	for m := 0; m < r.plan.Months; m++ {
		if m > 0 && m == r.plan.UpgradeAfter {
			r.cycle = int64(m)
			target := NextCycleAfter(r.anchor, r.cycle, r.frozen, types.MonthSeconds) + midMonth
			if err := s.advanceTo(ctx, r, target); err != nil {
				return err
			}
			r.result.MonthsSimulated++
			if err := s.upgrade(ctx, r); err != nil {
				s.Logger.Warnw("upgrade failed, entity stays on base price",
					"customer_id", r.entityID,
					"subscription_id", r.subscriptionID,
					"error", err,
				)
			} else {
				r.result.Upgraded = true
				r.enter(types.TrajectoryStateUpgraded)
			}
		} else if err := s.billPeriod(ctx, r, m); err != nil {
			return err
		}

		s.reconcile(ctx, r)
	}
	return nil
}

// upgrade switches the subscription to the upgrade price without proration.
// It falls back to replacing the item, then to a fresh subscription.
func (s *scenarioService) upgrade(ctx context.Context, r *entityRun) error {
	subs := s.Platform.Subscriptions()
	priceRef := r.plan.UpgradePriceRef

	var sub *subscription.Subscription
	err := s.remote(ctx, func() error {
		var err error
		sub, err = subs.ChangePrice(ctx, r.subscriptionID, r.itemID, priceRef, types.ProrationBehaviorNone)
		return err
	})
	if err == nil {
		r.itemID = sub.ItemID
		return nil
	}
	s.Logger.Warnw("price change failed, replacing item", "subscription_id", r.subscriptionID, "error", err)

	err = s.remote(ctx, func() error {
		var err error
		sub, err = subs.ReplaceItem(ctx, r.subscriptionID, r.itemID, priceRef, types.ProrationBehaviorNone)
		return err
	})
	if err == nil {
		r.itemID = sub.ItemID
		return nil
	}
	s.Logger.Warnw("item replacement failed, recreating subscription", "subscription_id", r.subscriptionID, "error", err)

	s.cancel(ctx, r, r.subscriptionID)
	_, err = s.createSubscription(ctx, r, priceRef, nil, types.Metadata{
		types.MetadataKeyRunID:      s.runID,
		types.MetadataKeyTrajectory: r.plan.Trajectory.String(),
		types.MetadataKeyIndex:      strconv.Itoa(r.plan.Index),
	})
	return err
}

// cancel deletes the subscription, falling back to cancel at period end when
// the delete is rejected. Only throttled and transient failures are retried,
// up to the cancel bound; a rejected fallback gives up at once.
func (s *scenarioService) cancel(ctx context.Context, r *entityRun, subscriptionID string) bool {
	subs := s.Platform.Subscriptions()
	atPeriodEnd := false

	attempts, err := s.cancelPolicy().run(ctx, func() error {
		if !atPeriodEnd {
			_, err := subs.Cancel(ctx, subscriptionID)
			if err == nil || ierr.IsRetryable(err) {
				return err
			}
			s.Logger.Warnw("cancel rejected, canceling at period end",
				"subscription_id", subscriptionID,
				"error", err,
			)
			atPeriodEnd = true
		}
		_, err := subs.CancelAtPeriodEnd(ctx, subscriptionID)
		return permanentUnlessRetryable(err)
	}, func(err error, wait time.Duration) {
		s.Logger.Warnw("cancel failed, backing off",
			"subscription_id", subscriptionID,
			"at_period_end", atPeriodEnd,
			"wait", wait.String(),
			"error", err,
		)
	})
	if err != nil {
		s.Logger.Errorw("failed to cancel subscription",
			"subscription_id", subscriptionID,
			"attempts", attempts,
			"error", err,
		)
		return false
	}

	s.Logger.Infow("subscription canceled",
		"customer_id", r.entityID,
		"subscription_id", subscriptionID,
		"at_period_end", atPeriodEnd,
		"attempts", attempts,
	)
	return true
}

// settle gives the platform a few days to finalize trailing invoices and
// then reconciles until nothing moves.
func (s *scenarioService) settle(ctx context.Context, r *entityRun) error {
	days := int64(s.Config.Scenario.SettleDays)
	if days > 0 {
		if err := s.advanceTo(ctx, r, r.frozen+days*types.DaySeconds); err != nil {
			return err
		}
	}

	res, err := s.reconciler.ReconcileUntilSettled(ctx, r.entityID, s.Config.Scenario.SettlePasses)
	if err != nil {
		s.Logger.Warnw("settle reconcile failed", "customer_id", r.entityID, "error", err)
		return nil
	}
	r.result.ReconcilePaid += res.PaidCount
	return nil
}

// collect records the final invoice and subscription state
func (s *scenarioService) collect(ctx context.Context, r *entityRun) error {
	var invoices []*invoice.Invoice
	err := s.remote(ctx, func() error {
		var err error
		invoices, err = s.Platform.Invoices().List(ctx, r.entityID)
		return err
	})
	if err != nil {
		return err
	}
	for _, inv := range invoices {
		switch inv.Status {
		case types.InvoiceStatusPaid:
			r.result.InvoicesPaid++
		case types.InvoiceStatusOpen, types.InvoiceStatusDraft, types.InvoiceStatusUncollectible:
			r.result.InvoicesUnpaid++
		}
	}

	var sub *subscription.Subscription
	err = s.remote(ctx, func() error {
		var err error
		sub, err = s.Platform.Subscriptions().Retrieve(ctx, r.subscriptionID)
		return err
	})
	if err != nil {
		return err
	}
	r.result.SubscriptionStatus = sub.Status
	if sub.Status == types.SubscriptionStatusPastDue {
		r.result.PastDueObserved = true
	}
	r.result.ClockFrozenTime = r.frozen
	return nil
}
