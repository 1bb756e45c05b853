package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"arcmigrate/internal/migration"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Request a soft stop; the running pass finishes its current item and exits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := migration.RequestStop(cfg.StopFilePath()); err != nil {
				return fmt.Errorf("request stop: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Soft stop requested (%s)\n", cfg.StopFilePath())
			return nil
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Clear a soft stop so the next run proceeds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !migration.ReadStopFile(cfg.StopFilePath()) {
				fmt.Fprintln(cmd.OutOrStdout(), "No soft stop was requested")
				return nil
			}
			if err := migration.ClearStop(cfg.StopFilePath()); err != nil {
				return fmt.Errorf("clear stop: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Soft stop cleared")
			return nil
		},
	}
}
