package sweeply

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sweeply/sweeply/internal/conf"
	app "github.com/sweeply/sweeply/internal/sweeply"
)

var rootCmd = &cobra.Command{
	Use:               "sweeply",
	Short:             "Safe disk cleanup with scoring, audit and backups",
	PersistentPreRun:  initLog,
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Interactive default: scan with the current profile and show
		// recommendations, leaving deletion to an explicit `clean`.
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		results, err := a.Scan(ctx, flagCategories)
		if err != nil {
			return err
		}
		recs, err := a.Recommend(ctx, results)
		if err != nil {
			return err
		}
		printScanSummary(results)
		printRecommendations(recs)
		fmt.Println("\nRun `sweeply clean` to act on these recommendations.")
		return nil
	},
}

// Flags shared across subcommands.
var (
	flagDryRun     bool
	flagSafe       bool
	flagAggressive bool
	flagCategories []string
	flagMinSafety  int
	flagJSON       bool
	flagDuplicates bool
	flagProvider   string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&Debug, "debug", false, "enable debug logging")
	pf.BoolVar(&flagDryRun, "dry-run", false, "simulate deletions, leave the filesystem untouched")
	pf.BoolVar(&flagSafe, "safe", false, "use the conservative category preset")
	pf.BoolVar(&flagAggressive, "aggressive", false, "expand categories and relax the auditor")
	pf.StringSliceVar(&flagCategories, "categories", nil, "comma-separated category tokens")
	pf.IntVar(&flagMinSafety, "min-safety", 0, "minimum safety score for cleaning (default from config)")
	pf.BoolVar(&flagJSON, "json", false, "emit machine-readable JSON")
	pf.BoolVar(&flagDuplicates, "duplicates", false, "include duplicate detection in scans")
	pf.StringVar(&flagProvider, "provider", "", "backup provider (localnas|icloud|remote|ipfs|smart)")
}

// newApp loads configuration, applies flag overrides and builds the
// engine wiring.
func newApp() (*app.App, error) {
	cfg, err := conf.Load("")
	if err != nil {
		return nil, err
	}
	if flagDryRun {
		cfg.DryRun = true
	}
	if flagAggressive {
		cfg.ApplyProfile(conf.ProfileAggressive)
	}
	if flagSafe {
		cfg.AggressiveMode = false
	}
	if flagMinSafety > 0 {
		cfg.MinSafetyScore = flagMinSafety
	}
	if flagProvider != "" {
		cfg.BackupProvider = flagProvider
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.New(cfg)
}

// Execute runs the CLI. Exit code 0 on success, 1 on cancellation or
// operational failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
