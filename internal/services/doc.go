// Package services defines shared utilities consumed by the pipeline stages
// and the collaborator clients under its subpackages.
//
// Key responsibilities:
//   - Context helpers that stamp work item IDs, batch names, stages, and
//     correlation identifiers for logging.
//   - Structured error markers plus Wrap and Classify, which turn failures
//     into per-step outcomes (done, retryable, fatal).
//   - Retry and Sleep for bounded, context-aware waiting.
//   - NewRESTClient and CheckResponse, the common resty setup used by the
//     catalog, transfer and scan clients.
package services
