// Package runner connects the pieces of a loop execution: it leases the
// thread from a session.Registry, runs the agent engine behind a
// stream.Stream and commits the conversation only when the run completed.
//
// # Responsibilities
//   - Thread resolution (ErrThreadBusy is returned synchronously)
//   - Request ids and the leading metadata event
//   - Commit on success; release without commit on failure or cancellation
//   - Cancellation of in-flight runs by request id
//
// Invoke is the synchronous helper used by tests and the facade.
package runner
