// Package main hosts the arcmigrate CLI entrypoint and command graph.
//
// The Cobra-based command tree runs migration passes in the foreground or on
// a cron schedule, inspects and repairs the work store (batches, quarantine,
// path aliases, stuck claims), toggles the soft-stop flag, and scaffolds
// configuration. It centralizes configuration resolution and structured
// logging setup so subcommands can focus on output instead of wiring.
//
// Keep this package lean: add new behaviour to the internal packages first,
// then surface it through dedicated commands or flags here.
package main
