package core

import "errors"

var (
	// ErrModelInvocationFailed is returned when the model call errors, times
	// out or produces a response that cannot be interpreted. Fatal to the loop.
	ErrModelInvocationFailed = errors.New("model invocation failed")

	// ErrToolExecutionFailed marks a tool call that returned an error. It is fed
	// back to the model as an error-flagged tool result.
	ErrToolExecutionFailed = errors.New("tool execution failed")

	// ErrToolNotFound marks a tool call naming an unregistered tool.
	ErrToolNotFound = errors.New("tool not found")

	// ErrThreadBusy is returned when a thread is already held by another loop execution.
	ErrThreadBusy = errors.New("thread busy")

	// ErrThreadNotFound is returned by stores for unknown thread identifiers.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrIterationLimit is returned when a loop exceeds its model invocation budget.
	ErrIterationLimit = errors.New("iteration limit exceeded")

	// ErrMalformedResponse marks a model response whose tool call structure is unusable.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrInvalidConversation is returned when an append would break tool call / result pairing.
	ErrInvalidConversation = errors.New("invalid conversation")
)
