// Package preflight provides readiness checks for the storage paths, binaries
// and collaborator endpoints a migration run depends on.
//
// The supervisor calls RunAll before each run and refuses to start when a
// required check fails, so an unmounted media root never turns into a batch of
// quarantined items. The CLI "arcmigrate preflight" command renders the same
// results as a table.
//
// Endpoint checks are skipped when the corresponding base URL is unset.
package preflight
