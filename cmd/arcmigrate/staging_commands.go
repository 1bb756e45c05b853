package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"arcmigrate/internal/config"
	"arcmigrate/internal/logging"
	"arcmigrate/internal/pathfix"
	"arcmigrate/internal/staging"
	"arcmigrate/internal/supervisor"
	"arcmigrate/internal/workstore"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staging",
		Short: "Inspect or clean the transcode staging directory",
	}
	cmd.AddCommand(newStagingListCommand(ctx))
	cmd.AddCommand(newStagingCleanCommand(ctx))
	return cmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staged files and whether a pending item still needs them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withStore(func(cfg *config.Config, store *workstore.Store) error {
				files, err := staging.ListFiles(cfg.Paths.StagingDir)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Staging directory is empty")
					return nil
				}
				keep, err := supervisor.PendingStaged(cmd.Context(), store, pathfix.NewResolver(cfg, store, logging.NewNop()))
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(files))
				var total int64
				for _, file := range files {
					_, pending := keep[file.Path]
					rows = append(rows, []string{
						file.Rel,
						humanize.IBytes(nonNegative(file.Size)),
						file.ModTime.Local().Format(time.DateTime),
						yesNo(pending),
					})
					total += file.Size
				}
				fmt.Fprintln(cmd.OutOrStdout(), tableSpec{
					headers: []string{"File", "Size", "Modified", "Pending copy"},
					aligns:  []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
					rows:    rows,
					footer:  []string{fmt.Sprintf("%d files", len(files)), humanize.IBytes(nonNegative(total)), "", ""},
				}.render())
				return nil
			})
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove staged files no pending item needs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withExclusiveStore(func(cfg *config.Config, store *workstore.Store) error {
				logger, err := ctx.logger(false)
				if err != nil {
					return err
				}
				keep, err := supervisor.PendingStaged(cmd.Context(), store, pathfix.NewResolver(cfg, store, logger))
				if err != nil {
					return err
				}
				result := staging.CleanOrphaned(cmd.Context(), cfg.Paths.StagingDir, keep, logger)
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d staged files (%s), kept %d pending\n",
					len(result.Removed), humanize.IBytes(nonNegative(result.Freed)), len(keep))
				if len(result.Errors) > 0 {
					return fmt.Errorf("%d staged files could not be removed", len(result.Errors))
				}
				return nil
			})
		},
	}
}
