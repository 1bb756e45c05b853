// Package scheduler drives daemon mode: one bounded migration run per cron
// tick, with overlapping ticks skipped.
package scheduler
