// Package fetch provides the shared HTTP client used for every outbound
// request. Retries live in the transport: a response whose status is in the
// policy's retryable set is discarded and the request re-sent after an
// exponential backoff, up to the policy's attempt ceiling. Transport errors
// (dial, TLS, reset) are returned to the caller untouched.
//
// Build one client per process with NewClient and inject it; the client and
// its policy are safe for concurrent use.
package fetch
