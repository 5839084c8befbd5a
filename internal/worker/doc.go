// Package worker runs batches of vocabulary work.
//
// BatchWorker is the generic, sequential, fail-fast shape used for words,
// examples and sentences. AudioWorker fans fetches out over a bounded pool
// and is fail-soft: one broken download never aborts the batch. LoginCheck
// is a one-shot check whose outcome replaces tick/done.
//
// Cancellation is the context passed to Run. It is polled between items
// (and at the start of each fetch task); work already started is never
// interrupted.
package worker
