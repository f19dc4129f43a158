package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flexprice/clockwork/internal/config"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags
var Version = "dev"

// flagRun receives the run flags. Only flags set on the command line
// override the loaded configuration.
var flagRun = config.GetDefaultConfig().Run

var rootCmd = &cobra.Command{
	Use:           "clockwork",
	Short:         "Generate realistic billing history on Stripe test clocks",
	Long:          `clockwork creates test customers on simulated clocks and drives them through months of renewals, failed payments, upgrades and cancellations.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC

	flags := rootCmd.PersistentFlags()
	flags.IntVar(&flagRun.Count, "count", flagRun.Count, "number of customers to create")
	flags.Int64Var(&flagRun.Seed, "seed", flagRun.Seed, "random seed for plan sampling")
	flags.StringVar(&flagRun.EmailDomain, "email-domain", flagRun.EmailDomain, "domain of generated customer emails")
	flags.StringVar(&flagRun.EmailPrefix, "email-prefix", flagRun.EmailPrefix, "local-part prefix of dunning customer emails")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(dunningCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(warehouseCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// runOverrides copies every run flag the user set onto the configuration
func runOverrides(cmd *cobra.Command) func(*config.Configuration) {
	return func(cfg *config.Configuration) {
		flags := cmd.Flags()
		set := func(name string, apply func()) {
			if flags.Changed(name) {
				apply()
			}
		}

		set("count", func() { cfg.Run.Count = flagRun.Count })
		set("seed", func() { cfg.Run.Seed = flagRun.Seed })
		set("email-domain", func() { cfg.Run.EmailDomain = flagRun.EmailDomain })
		set("email-prefix", func() { cfg.Run.EmailPrefix = flagRun.EmailPrefix })
		set("months", func() { cfg.Run.Months = flagRun.Months })
		set("active-pct", func() { cfg.Run.ActivePct = flagRun.ActivePct })
		set("canceled-pct", func() { cfg.Run.CanceledPct = flagRun.CanceledPct })
		set("annual-pct", func() { cfg.Run.AnnualPct = flagRun.AnnualPct })
		set("cleanup", func() { cfg.Run.Cleanup = flagRun.Cleanup })
		set("total-months", func() { cfg.Run.TotalMonths = flagRun.TotalMonths })
		set("min-paid-months", func() { cfg.Run.MinPaidMonths = flagRun.MinPaidMonths })
		set("max-paid-months", func() { cfg.Run.MaxPaidMonths = flagRun.MaxPaidMonths })
		set("min-past-due-months", func() { cfg.Run.MinPastDueMonths = flagRun.MinPastDueMonths })
		set("max-past-due-months", func() { cfg.Run.MaxPastDueMonths = flagRun.MaxPastDueMonths })
		set("min-upgrade-after", func() { cfg.Run.MinUpgradeAfter = flagRun.MinUpgradeAfter })
		set("max-upgrade-after", func() { cfg.Run.MaxUpgradeAfter = flagRun.MaxUpgradeAfter })
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
