package main

import (
	"context"

	"github.com/flexprice/clockwork/internal/clickhouse"
	ierr "github.com/flexprice/clockwork/internal/errors"
	chrepo "github.com/flexprice/clockwork/internal/repository/clickhouse"
	"github.com/flexprice/clockwork/internal/service"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/spf13/cobra"
)

var (
	dunningTrajectory string
	warehouseQuery    string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Create active and canceled customers with historical renewals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), runOverrides(cmd), func(ctx context.Context, a *app) error {
			prices, err := prepare(ctx, a)
			if err != nil {
				return err
			}
			plans, err := service.NewPlanner(a.Config.Run).GeneratePlans(*prices)
			if err != nil {
				return err
			}
			return runBatch(ctx, cmd, a, plans)
		})
	},
}

var dunningCmd = &cobra.Command{
	Use:   "dunning",
	Short: "Create customers whose payments start failing after some paid months",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), runOverrides(cmd), func(ctx context.Context, a *app) error {
			prices, err := prepare(ctx, a)
			if err != nil {
				return err
			}
			plans, err := service.NewPlanner(a.Config.Run).DunningPlans(types.Trajectory(dunningTrajectory), prices.Monthly)
			if err != nil {
				return err
			}
			return runBatch(ctx, cmd, a, plans)
		})
	},
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Create customers that move from the base price to the upgrade price",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), runOverrides(cmd), func(ctx context.Context, a *app) error {
			prices, err := prepare(ctx, a)
			if err != nil {
				return err
			}
			plans, err := service.NewPlanner(a.Config.Run).UpgradePlans(*prices)
			if err != nil {
				return err
			}
			return runBatch(ctx, cmd, a, plans)
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete generated customers, their clocks and the bootstrap product",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), runOverrides(cmd), func(ctx context.Context, a *app) error {
			result, err := a.Cleanup.Cleanup(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

var warehouseCmd = &cobra.Command{
	Use:   "warehouse",
	Short: "Load generated customers, subscriptions and invoices into ClickHouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), runOverrides(cmd), func(ctx context.Context, a *app) error {
			store, err := clickhouse.NewStore(ctx, a.Config, a.Sentry, a.Logger)
			if err != nil {
				return err
			}
			defer store.Close()

			repo := chrepo.NewWarehouseRepository(store, a.Logger)
			result, err := service.NewWarehouseService(a.Params, repo).Load(ctx, warehouseQuery)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

func init() {
	generateCmd.Flags().IntVar(&flagRun.Months, "months", flagRun.Months, "length of the simulated history in months")
	generateCmd.Flags().IntVar(&flagRun.ActivePct, "active-pct", flagRun.ActivePct, "share of customers that stay active")
	generateCmd.Flags().IntVar(&flagRun.CanceledPct, "canceled-pct", flagRun.CanceledPct, "share of customers that cancel")
	generateCmd.Flags().IntVar(&flagRun.AnnualPct, "annual-pct", flagRun.AnnualPct, "share of customers on the annual price")
	for _, cmd := range []*cobra.Command{generateCmd, dunningCmd, upgradeCmd} {
		cmd.Flags().BoolVar(&flagRun.Cleanup, "cleanup", flagRun.Cleanup, "delete data from earlier runs first")
	}

	dunningCmd.Flags().StringVar(&dunningTrajectory, "trajectory", string(types.TrajectoryFailRecover), "fail_recover or fail_linger")
	dunningCmd.Flags().IntVar(&flagRun.TotalMonths, "total-months", flagRun.TotalMonths, "months simulated per customer")
	dunningCmd.Flags().IntVar(&flagRun.MinPaidMonths, "min-paid-months", flagRun.MinPaidMonths, "fewest months paid before failing")
	dunningCmd.Flags().IntVar(&flagRun.MaxPaidMonths, "max-paid-months", flagRun.MaxPaidMonths, "most months paid before failing")
	dunningCmd.Flags().IntVar(&flagRun.MinPastDueMonths, "min-past-due-months", flagRun.MinPastDueMonths, "fewest months past due before recovering")
	dunningCmd.Flags().IntVar(&flagRun.MaxPastDueMonths, "max-past-due-months", flagRun.MaxPastDueMonths, "most months past due before recovering")

	upgradeCmd.Flags().IntVar(&flagRun.Months, "months", flagRun.Months, "months simulated per customer")
	upgradeCmd.Flags().IntVar(&flagRun.MinUpgradeAfter, "min-upgrade-after", flagRun.MinUpgradeAfter, "earliest upgrade month")
	upgradeCmd.Flags().IntVar(&flagRun.MaxUpgradeAfter, "max-upgrade-after", flagRun.MaxUpgradeAfter, "latest upgrade month")

	warehouseCmd.Flags().StringVar(&warehouseQuery, "query", "", `customer search query, defaults to email~"@<email-domain>"`)
}

// prepare removes earlier runs when asked and resolves the prices to bill
func prepare(ctx context.Context, a *app) (*service.PriceRefs, error) {
	if a.Config.Run.Cleanup {
		if _, err := a.Cleanup.Cleanup(ctx); err != nil {
			return nil, err
		}
	}
	return a.Bootstrap.ResolvePrices(ctx)
}

// runBatch drives the plans, exports the records and prints the summary.
// Records are exported even when the run was interrupted.
func runBatch(ctx context.Context, cmd *cobra.Command, a *app, plans []*service.EntityPlan) error {
	summary, runErr := a.Scenario.Run(ctx, plans)
	if summary == nil {
		return runErr
	}

	if _, err := a.Export.Write(context.WithoutCancel(ctx), summary.RunID, summary.Entities); err != nil {
		a.Logger.Errorw("failed to export entity records", "run_id", summary.RunID, "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil && ierr.Is(runErr, context.Canceled) {
		a.Logger.Warnw("run interrupted, remote state is partially advanced",
			"run_id", summary.RunID,
			"finished_entities", len(summary.Entities),
			"planned_entities", len(plans),
		)
	}

	summary.Entities = nil
	if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
		return err
	}
	return runErr
}
