// Package report summarizes a batch once both stages have finished: totals,
// per-stage counts, saved space and, when the batch is not fully scanned,
// the first unmet stage of every incomplete item.
package report
