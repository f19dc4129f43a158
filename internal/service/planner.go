package service

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/flexprice/clockwork/internal/config"
	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/samber/lo"
)

// PriceRefs are the prices resolved by bootstrap
type PriceRefs struct {
	Monthly string
	Annual  string
	Base    string
	Upgrade string
}

// Planner samples entity plans from the run configuration. The same seed
// always yields the same plans.
type Planner struct {
	run config.RunConfig
	rng *rand.Rand
}

func NewPlanner(run config.RunConfig) *Planner {
	return &Planner{
		run: run,
		rng: rand.New(rand.NewSource(run.Seed)),
	}
}

// GeneratePlans splits Count entities exactly by the active/canceled and
// annual percentages, then gives each a random creation month. Plans are
// ordered by creation month.
func (p *Planner) GeneratePlans(prices PriceRefs) ([]*EntityPlan, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	total := p.run.Count
	canceled := make([]bool, total)
	activeCount := total * p.run.ActivePct / 100
	canceledCount := total * p.run.CanceledPct / 100
	for i := activeCount; i < activeCount+canceledCount && i < total; i++ {
		canceled[i] = true
	}

	annualCount := total * p.run.AnnualPct / 100
	annual := make([]bool, total)
	for i := 0; i < annualCount; i++ {
		annual[i] = true
	}
	if annualCount > 0 && prices.Annual == "" {
		return nil, ierr.NewError("annual price missing").
			WithHint("Annual plans were requested but no annual price was resolved").
			Mark(ierr.ErrValidation)
	}

	p.rng.Shuffle(total, func(i, j int) {
		canceled[i], canceled[j] = canceled[j], canceled[i]
		annual[i], annual[j] = annual[j], annual[i]
	})

	plans := make([]*EntityPlan, 0, total)
	for i := 0; i < total; i++ {
		creationMonth := p.rng.Intn(p.run.Months)
		remaining := p.run.Months - creationMonth

		plan := &EntityPlan{
			Index:         i + 1,
			Name:          fmt.Sprintf("Test User %d", i+1),
			Trajectory:    types.TrajectorySteadyActive,
			PriceRef:      lo.Ternary(annual[i], prices.Annual, prices.Monthly),
			Annual:        annual[i],
			CreationMonth: creationMonth,
			Months:        remaining,
		}
		if canceled[i] {
			plan.Trajectory = types.TrajectoryCancelAfter
			plan.Email = fmt.Sprintf("cancel%d@%s", i+1, p.run.EmailDomain)
			plan.CancelAfter = p.between(1, lo.Max([]int{1, remaining}))
		} else {
			plan.Email = fmt.Sprintf("active%d@%s", i+1, p.run.EmailDomain)
		}
		plans = append(plans, plan)
	}

	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].CreationMonth < plans[j].CreationMonth
	})
	return plans, nil
}

// DunningPlans samples paid and past-due months for a batch of failing
// entities. Recovering entities always have at least one past-due month.
func (p *Planner) DunningPlans(trajectory types.Trajectory, priceRef string) ([]*EntityPlan, error) {
	if !trajectory.IsFailing() {
		return nil, ierr.NewErrorf("trajectory %s is not a dunning trajectory", trajectory).
			WithHint("Dunning batches must be fail_recover or fail_linger").
			Mark(ierr.ErrValidation)
	}

	if err := p.validate(); err != nil {
		return nil, err
	}

	plans := make([]*EntityPlan, 0, p.run.Count)
	for i := 1; i <= p.run.Count; i++ {
		local := fmt.Sprintf("%s%d", p.run.EmailPrefix, i)
		plan := &EntityPlan{
			Index:      i,
			Email:      fmt.Sprintf("%s@%s", local, p.run.EmailDomain),
			Name:       local,
			Trajectory: trajectory,
			PriceRef:   priceRef,
			Months:     p.run.TotalMonths,
			PaidMonths: p.between(p.run.MinPaidMonths, p.run.MaxPaidMonths),
		}
		if trajectory == types.TrajectoryFailRecover {
			plan.PastDueMonths = p.between(
				lo.Max([]int{1, p.run.MinPastDueMonths}),
				lo.Max([]int{1, p.run.MaxPastDueMonths}),
			)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// UpgradePlans starts every entity on the base price and samples the month
// in which it moves to the upgrade price.
func (p *Planner) UpgradePlans(prices PriceRefs) ([]*EntityPlan, error) {
	if prices.Base == "" || prices.Upgrade == "" {
		return nil, ierr.NewError("upgrade prices missing").
			WithHint("Set base_price_id and upgrade_price_id for upgrade runs").
			Mark(ierr.ErrValidation)
	}

	if err := p.validate(); err != nil {
		return nil, err
	}

	plans := make([]*EntityPlan, 0, p.run.Count)
	for i := 1; i <= p.run.Count; i++ {
		plans = append(plans, &EntityPlan{
			Index:           i,
			Email:           fmt.Sprintf("upgrade%d@%s", i, p.run.EmailDomain),
			Name:            fmt.Sprintf("Upgrade Test %d", i),
			Trajectory:      types.TrajectoryUpgrade,
			PriceRef:        prices.Base,
			UpgradePriceRef: prices.Upgrade,
			Months:          p.run.Months,
			UpgradeAfter:    p.between(p.run.MinUpgradeAfter, p.run.MaxUpgradeAfter),
		})
	}
	return plans, nil
}

// validate rejects run settings that cannot be sampled, such as a negative
// count or an empty horizon
func (p *Planner) validate() error {
	if err := p.run.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Check the run flags: count >= 0, months >= 1 and active_pct + canceled_pct = 100").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// between returns a uniform integer in [low, high]
func (p *Planner) between(low, high int) int {
	if high <= low {
		return low
	}
	return low + p.rng.Intn(high-low+1)
}
