package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"arcmigrate/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var raw bool
	var itemID int64

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the newest run log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := logs.Latest(cfg.Paths.LogDir)
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No run logs yet")
				return nil
			}

			out := cmd.OutOrStdout()
			opts := logs.TailOptions{Offset: -1, Limit: lines}
			for {
				result, err := logs.Tail(cmd.Context(), path, opts)
				if err != nil {
					if errors.Is(err, cmd.Context().Err()) {
						return nil
					}
					return err
				}
				printLogLines(out, result.Lines, raw, itemID)
				if !follow {
					return nil
				}
				opts = logs.TailOptions{Offset: result.Offset, Wait: time.Minute}
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are written")
	cmd.Flags().BoolVar(&raw, "json", false, "Print raw JSON records")
	cmd.Flags().Int64Var(&itemID, "item", 0, "Only show records for this work item id")
	return cmd
}

func printLogLines(out io.Writer, lines []string, raw bool, itemID int64) {
	for _, line := range lines {
		if itemID > 0 && !logs.MatchesItem(line, itemID) {
			continue
		}
		if raw {
			fmt.Fprintln(out, line)
			continue
		}
		fmt.Fprintln(out, logs.Format(line))
	}
}
