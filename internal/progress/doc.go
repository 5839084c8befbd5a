// Package progress carries worker progress from the batch workers to whoever
// is watching. Workers see only the small Observer interface (tick, done);
// the Tracker turns that stream into run-scoped Events that a non-blocking
// Hub batches and fans out to sinks such as logs, Prometheus or the run
// history store.
package progress
