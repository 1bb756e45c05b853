// Package logs reads the per-run JSON logs written under the log directory.
//
// Tail streams a file with bounded memory, supports negative offsets for
// "last N lines" reads, and polls for appended lines so `arcmigrate logs
// --follow` can watch a run in progress. Format renders one JSON record as a
// single console line.
package logs
