package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"arcmigrate/internal/pathfix"
)

func newSanitizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "sanitize PATH...",
		Short:       "Print the sanitized form of each path",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				fmt.Fprintln(cmd.OutOrStdout(), pathfix.SanitizePath(arg))
			}
			return nil
		},
	}
}
