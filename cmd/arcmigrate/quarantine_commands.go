package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"arcmigrate/internal/config"
	"arcmigrate/internal/workstore"
)

func newQuarantineCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarantine",
		Short: "Inspect or clear quarantined clips",
	}
	cmd.AddCommand(newQuarantineListCommand(ctx))
	cmd.AddCommand(newQuarantineClearCommand(ctx))
	return cmd
}

func newQuarantineListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quarantined clips and the reason each was set aside",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withStore(func(_ *config.Config, store *workstore.Store) error {
				items, err := store.ListQuarantine(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					type entry struct {
						ClipID     int64     `json:"clip_id"`
						SourcePath string    `json:"source_path"`
						Reason     string    `json:"reason"`
						CreatedAt  time.Time `json:"created_at"`
					}
					entries := make([]entry, 0, len(items))
					for _, item := range items {
						entries = append(entries, entry{item.ClipID, item.SourcePath, item.Reason, item.CreatedAt})
					}
					return writeJSON(cmd.OutOrStdout(), entries)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Quarantine is empty")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ClipID, 10),
						item.CreatedAt.Local().Format(time.DateTime),
						item.Reason,
						item.SourcePath,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Clip", "Since", "Reason", "Source"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newQuarantineClearCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clear [CLIP_ID...]",
		Short: "Remove clips from quarantine so the next run retries them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("pass clip ids or --all (but not both)")
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withExclusiveStore(func(_ *config.Config, store *workstore.Store) error {
				out := cmd.OutOrStdout()
				if all {
					cleared, err := store.ClearQuarantine(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d quarantine entries\n", cleared)
					return nil
				}
				for _, id := range ids {
					removed, err := store.RemoveQuarantine(cmd.Context(), id)
					if err != nil {
						return err
					}
					if removed {
						fmt.Fprintf(out, "Clip %d removed from quarantine\n", id)
					} else {
						fmt.Fprintf(out, "Clip %d was not quarantined\n", id)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Clear every quarantine entry")
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
