package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"arcmigrate/internal/deps"
	"arcmigrate/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check storage paths, encoder binaries and collaborator endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())

			results := preflight.RunAll(cmd.Context(), cfg)
			p.header("Preflight")
			for _, result := range results {
				p.check(result)
			}

			probeCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if version, err := deps.ProbeVersion(probeCtx, cfg.Encoder.FFmpegBinary); err == nil && version != "" {
				p.line("FFmpeg version", levelInfo, version)
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}
}
