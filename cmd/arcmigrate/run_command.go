package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"arcmigrate/internal/supervisor"
	"arcmigrate/internal/workstore"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts supervisor.RunOptions
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one migration pass in the foreground",
		Long: "Run one migration pass. Without flags a new batch is populated for today's\n" +
			"date, or the existing batch is resumed. --helper resumes the newest batch\n" +
			"(or the one named by --date) without searching the catalog.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			outcome, err := runOnce(signalCtx, ctx, opts, skipPreflight)
			if outcome != nil {
				printOutcome(cmd.OutOrStdout(), outcome)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.Helper, "helper", false, "Resume an existing batch instead of populating a new one")
	cmd.Flags().StringVar(&opts.Date, "date", "", "Batch cut-off date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Do not run readiness checks before the pass")
	return cmd
}

// runOnce wires the production collaborators and performs one supervised run.
func runOnce(parent context.Context, ctx *commandContext, opts supervisor.RunOptions, skipPreflight bool) (*supervisor.Outcome, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.logger(true)
	if err != nil {
		return nil, err
	}
	store, err := workstore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open work store: %w", err)
	}
	defer store.Close()

	deps := supervisor.NewDependencies(cfg, store, logger)
	if skipPreflight {
		deps.Preflight = nil
	}
	return supervisor.New(cfg, deps, logger).Run(parent, opts)
}

func printOutcome(out io.Writer, outcome *supervisor.Outcome) {
	if outcome.Batch == "" {
		return
	}
	fmt.Fprintf(out, "Batch %s (%s)\n", outcome.Batch, outcome.Mode)
	if outcome.Idle {
		fmt.Fprintln(out, "Nothing to resume")
		return
	}
	if p := outcome.Populated; p.Found > 0 {
		fmt.Fprintf(out, "Populated: %d found, %d added, %d quarantined, %d skipped\n",
			p.Found, p.Added, p.Quarantined, p.Skipped)
	}
	for i, pass := range outcome.Passes {
		fmt.Fprintf(out, "Pass %d: %d transcoded/forwarded, %d quarantined, %d released, %d completed, %d partial",
			i+1, pass.Produce.Forwarded, pass.Produce.Quarantined, pass.Produce.Released,
			pass.Insert.Completed, pass.Insert.Partial)
		if pass.Produce.Stopped {
			fmt.Fprint(out, " (soft stop)")
		}
		fmt.Fprintln(out)
	}
	if outcome.Report != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, outcome.Report.Subject())
		fmt.Fprintln(out, outcome.Report.Message())
	}
}
