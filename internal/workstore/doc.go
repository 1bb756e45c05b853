// Package workstore persists migration state in SQLite.
//
// It holds three tables keyed for resumability: work items grouped by batch
// with their monotonic stage flags, the quarantine of clips that cannot
// progress, and the path alias cache recording where stale catalog
// directories were found on disk. Stage flags only move from 0 to 1; a
// schema trigger rejects any attempt to clear one. Claim gives a single
// worker exclusive ownership of an item via a conditional update.
package workstore
