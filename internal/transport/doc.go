// Package transport moves batches of tasks between the orchestrating
// goroutine and an execution context, without knowing what the tasks mean.
//
// Two interchangeable strategies implement the same contract: a worker pool
// communicating purely over channels, and an inline executor for
// environments where no pool can run. Select performs the capability check
// once; callers hold a Transport and never branch on the strategy. Every
// Send resolves exactly once or fails with the round-trip timeout, and
// Terminate guarantees no progress handler fires afterwards.
package transport
