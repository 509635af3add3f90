// Package history owns the record of prior uploads: a SQLite-backed local
// store plus an HTTP client for a hosted record service. Both expose the
// batched fingerprint lookup the classifier consumes.
package history
