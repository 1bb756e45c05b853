package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"arcmigrate/internal/logging"
	"arcmigrate/internal/scheduler"
	"arcmigrate/internal/supervisor"
	"arcmigrate/internal/workstore"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var schedule string
	var helper bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run migration passes on the configured cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			spec := strings.TrimSpace(schedule)
			if spec == "" {
				spec = strings.TrimSpace(cfg.Migration.Schedule)
			}
			if spec == "" {
				return errors.New("no schedule configured (set migration.schedule or pass --schedule)")
			}
			logger, err := ctx.logger(true)
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			run := func(runCtx context.Context) error {
				outcome, err := runOnce(runCtx, ctx, supervisor.RunOptions{Helper: helper}, false)
				if errors.Is(err, workstore.ErrLocked) {
					logger.Info("previous run still holds the lock; skipping tick")
					return nil
				}
				if err == nil && outcome != nil && outcome.Report != nil {
					logger.Info("batch report",
						logging.String(logging.FieldBatch, outcome.Batch),
						logging.String("subject", outcome.Report.Subject()),
					)
				}
				return err
			}

			sched, err := scheduler.New(spec, run, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "arcmigrate daemon started (schedule %q, next run %s)\n",
				spec, sched.Next(time.Now()).Format(time.RFC3339))
			if err := sched.Run(signalCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression overriding migration.schedule")
	cmd.Flags().BoolVar(&helper, "helper", false, "Only resume existing batches on each tick")
	return cmd
}
