// Package classify turns fingerprinted queue items into terminal duplicate
// verdicts, combining in-batch grouping with batched historical lookups.
package classify
