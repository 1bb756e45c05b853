package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"arcmigrate/internal/config"
	"arcmigrate/internal/report"
	"arcmigrate/internal/workstore"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect or repair work items of a batch",
	}
	cmd.AddCommand(newItemsListCommand(ctx))
	cmd.AddCommand(newItemsReleaseCommand(ctx))
	return cmd
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	var batchName string
	var incomplete bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items with their stage flags",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withStore(func(_ *config.Config, store *workstore.Store) error {
				batch, err := requireBatch(cmd, store, batchName)
				if err != nil {
					return err
				}
				var items []*workstore.WorkItem
				if incomplete {
					items, err = store.ListIncomplete(cmd.Context(), batch.Name)
				} else {
					items, err = store.List(cmd.Context(), batch.Name)
				}
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No items in batch %s\n", batch.Name)
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					state := "done"
					if flag, ok := item.FirstUnmet(); ok {
						state = report.StageLabel(flag)
					}
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						strconv.FormatInt(item.ClipID, 10),
						yesNo(item.InWork),
						state,
						humanize.IBytes(nonNegative(item.OrigSizeBytes)),
						item.SourcePath,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Clip", "In work", "State", "Size", "Source"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&batchName, "batch", "", "Batch name; defaults to the newest batch")
	cmd.Flags().BoolVar(&incomplete, "incomplete", false, "Only list items with unset stage flags")
	return cmd
}

// Claims are never reclaimed automatically; a run that died mid-item leaves
// in_work set until an operator releases it here.
func newItemsReleaseCommand(ctx *commandContext) *cobra.Command {
	var batchName string
	cmd := &cobra.Command{
		Use:   "release [ID...]",
		Short: "Release claims left behind by an interrupted run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withExclusiveStore(func(_ *config.Config, store *workstore.Store) error {
				batch, err := requireBatch(cmd, store, batchName)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					released, err := store.ReleaseInWork(cmd.Context(), batch.Name)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Released %d claimed items in batch %s\n", released, batch.Name)
					return nil
				}
				for _, id := range ids {
					if err := store.Release(cmd.Context(), batch.Name, id); err != nil {
						return err
					}
					fmt.Fprintf(out, "Released item %d in batch %s\n", id, batch.Name)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&batchName, "batch", "", "Batch name; defaults to the newest batch")
	return cmd
}

func requireBatch(cmd *cobra.Command, store *workstore.Store, name string) (*workstore.Batch, error) {
	name = strings.TrimSpace(name)
	batch, err := findBatch(cmd, store, name)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		if name != "" {
			return nil, fmt.Errorf("batch %s does not exist", name)
		}
		return nil, errors.New("no batches recorded yet")
	}
	return batch, nil
}
