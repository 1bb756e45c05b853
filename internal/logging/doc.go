// Package logging assembles structured slog loggers and formatting helpers used
// across arcmigrate.
//
// It owns the console and JSON handlers, fans records out to the terminal and
// a per-run JSON file, and exposes context-aware helpers so stage code tags
// log lines with run IDs, batches, stages and work item IDs. Old run logs are
// pruned by retention age. A no-op logger is provided for tests.
package logging
