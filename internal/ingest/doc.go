// Package ingest wires traversal, hashing, classification, and queue state
// into one scan pipeline.
package ingest
