// Package queue owns the canonical item list for an ingestion session and
// drives item lifecycle.
//
// Items move queued -> hashing -> classifying and finish in exactly one of
// ready, duplicate_exact, duplicate_variant, skipped, or errored. The
// Manager applies results in discrete, fully-formed batches and publishes
// copies to an optional observer, so no reader ever sees a partial update.
// CancelAll is the cooperative cancellation gate: any hashing or
// classification result that lands after it is discarded rather than
// applied.
//
// Treat this package as the single source of truth for lifecycle semantics;
// new statuses must be added to the rank table in models.go.
package queue
