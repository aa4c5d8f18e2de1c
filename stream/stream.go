// Package stream turns a loop execution into an ordered, pull based sequence of
// core.StreamEvent values.
//
// A producer runs in its own goroutine and pushes events through a Sink; the
// consumer pulls them with Next or ranges over Events. Delivery order equals
// production order and the producer blocks while the buffer is full. Every
// stream that is not cancelled ends with exactly one terminal marker: a
// completed MetadataEvent or an ErrorEvent. A Stream has a single consumer and
// cannot be restarted.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/metrics"
)

// ErrorPrefix prefixes the message of the terminal ErrorEvent.
const ErrorPrefix = "Stream error: "

// Sink accepts events from a producer. Send blocks until the consumer has
// room or ctx is done.
type Sink interface {
	Send(ctx context.Context, ev core.StreamEvent) error
}

// Producer generates the events of one stream. Returning nil completes the
// stream; returning an error fails it.
type Producer func(ctx context.Context, sink Sink) error

// Options configures a Stream.
type Options struct {
	// BufferSize is the number of events buffered between producer and consumer.
	BufferSize int
	// Preamble events are emitted before the producer runs.
	Preamble []core.StreamEvent
	// OnComplete runs after the producer succeeded and before the completion
	// marker. An error fails the stream.
	OnComplete func(ctx context.Context) error
	Logger     logging.Logger
	Metrics    *metrics.Metrics
}

// Stream is the consumer side of a running producer.
type Stream struct {
	events chan core.StreamEvent
	done   chan struct{}
	cancel context.CancelFunc
	opts   Options

	mu  sync.Mutex
	err error
}

// New starts producer in a new goroutine. Cancelling ctx (or calling Close)
// stops the producer and closes the stream without a terminal marker.
func New(ctx context.Context, producer Producer, optFns ...func(o *Options)) *Stream {
	opts := Options{
		BufferSize: 16,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BufferSize < 0 {
		opts.BufferSize = 0
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		events: make(chan core.StreamEvent, opts.BufferSize),
		done:   make(chan struct{}),
		cancel: cancel,
		opts:   opts,
	}

	go s.run(ctx, producer)

	return s
}

func (s *Stream) run(ctx context.Context, producer Producer) {
	s.opts.Metrics.StreamOpened()
	defer func() {
		s.opts.Metrics.StreamClosed()
		close(s.events)
		close(s.done)
		s.cancel()
	}()

	for _, ev := range s.opts.Preamble {
		if err := s.Send(ctx, ev); err != nil {
			s.setErr(err)
			return
		}
	}

	err := producer(ctx, s)
	// A consumer that went away before the producer returned must not see
	// its turn committed.
	completed := false
	if err == nil && ctx.Err() == nil {
		if s.opts.OnComplete != nil {
			err = s.opts.OnComplete(ctx)
		}
		completed = err == nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && !completed {
		if err == nil {
			err = ctxErr
		}
		s.setErr(err)
		s.opts.Logger.Debug("stream.cancelled", "error", err)
		return
	}

	if err != nil {
		s.setErr(err)
		s.opts.Logger.Warn("stream.failed", "error", err)
		_ = s.Send(ctx, core.ErrorEvent{Message: ErrorPrefix + err.Error()})
		return
	}

	_ = s.Send(ctx, core.NewMetadataEvent(
		"status", core.StatusCompleted,
		"timestamp", time.Now().UTC().Format(time.RFC3339Nano),
	))
}

// Send implements Sink for the producer side.
func (s *Stream) Send(ctx context.Context, ev core.StreamEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.events <- ev:
		return nil
	}
}

// Next returns the next event. It returns false once the stream is exhausted
// or ctx is done.
func (s *Stream) Next(ctx context.Context) (core.StreamEvent, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case ev, ok := <-s.events:
		return ev, ok
	}
}

// Events returns the event channel. It is closed after the terminal marker.
func (s *Stream) Events() <-chan core.StreamEvent { return s.events }

// Done is closed when the producer has finished and the stream is closed.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Close cancels the producer and waits for it to finish. Undelivered events
// are discarded.
func (s *Stream) Close() {
	s.cancel()
	for range s.events {
	}
	<-s.done
}

// Err returns the error that ended the stream, or nil if it completed or is
// still running. Cancellation is reported as the context error.
func (s *Stream) Err() error {
	select {
	case <-s.done:
	default:
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Collect drains s and returns every event together with the stream error.
func Collect(ctx context.Context, s *Stream) ([]core.StreamEvent, error) {
	var events []core.StreamEvent
	for {
		ev, ok := s.Next(ctx)
		if !ok {
			break
		}
		events = append(events, ev)
	}
	if err := ctx.Err(); err != nil {
		s.Close()
		return events, err
	}
	<-s.done
	return events, s.Err()
}
