package agent

import (
	"context"

	"github.com/hupe1980/agentloop/core"
)

// Sink receives the events of a loop execution in production order. Send may
// block to apply backpressure; an error aborts the run.
type Sink interface {
	Send(ctx context.Context, ev core.StreamEvent) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev core.StreamEvent) error

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, ev core.StreamEvent) error { return f(ctx, ev) }

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(context.Context, core.StreamEvent) error { return nil })
