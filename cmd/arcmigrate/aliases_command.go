package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"arcmigrate/internal/config"
	"arcmigrate/internal/workstore"
)

func newAliasesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "Inspect recovered directory aliases",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stale catalog directories and where they were found on disk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withStore(func(_ *config.Config, store *workstore.Store) error {
				aliases, err := store.ListAliases(cmd.Context())
				if err != nil {
					return err
				}
				if len(aliases) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No path aliases recorded")
					return nil
				}
				rows := make([][]string, 0, len(aliases))
				for _, alias := range aliases {
					rows = append(rows, []string{alias.OriginalDirectory, alias.PhysicalDirectory, alias.SanitizedDirectory})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Catalog directory", "Found at", "Sanitized"},
					rows,
					nil,
				))
				return nil
			})
		},
	})
	return cmd
}
