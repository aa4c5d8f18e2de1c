package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/metrics"
	"github.com/hupe1980/agentloop/session"
	"github.com/hupe1980/agentloop/stream"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Engine runs one loop execution on a conversation. *agent.Engine implements it.
type Engine interface {
	Run(ctx context.Context, conv *core.Conversation, input string, sink agent.Sink) error
}

// Options holds configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering between engine and consumer.
	EventBufferSize int
	// Logging services.
	Logger logging.Logger
	// Metrics collectors (optional).
	Metrics *metrics.Metrics
}

// Request is one user turn.
type Request struct {
	Input    string
	ThreadID string
}

// Run is a started loop execution.
type Run struct {
	ThreadID  string
	Created   bool
	RequestID string
	Stream    *stream.Stream
}

// Result is the outcome of a synchronous Invoke.
type Result struct {
	ThreadID  string
	RequestID string
	Events    []core.StreamEvent
}

// Text concatenates the token events of the result.
func (r *Result) Text() string {
	var b strings.Builder
	for _, ev := range r.Events {
		if tok, ok := ev.(core.TokenEvent); ok {
			b.WriteString(tok.Text)
		}
	}
	return b.String()
}

// Runner coordinates loop executions. Public methods are safe for concurrent use.
type Runner struct {
	engine   Engine
	registry *session.Registry
	opts     Options

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner. A nil registry uses an in-memory one.
func New(engine Engine, registry *session.Registry, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 16,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if registry == nil {
		registry = session.NewRegistry(nil)
	}

	return &Runner{
		engine:     engine,
		registry:   registry,
		opts:       opts,
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Registry returns the session registry used by the runner.
func (r *Runner) Registry() *session.Registry { return r.registry }

// Stream starts an asynchronous loop execution. Errors resolving the thread,
// including core.ErrThreadBusy, are returned before anything is streamed.
func (r *Runner) Stream(ctx context.Context, req Request) (*Run, error) {
	lease, err := r.registry.Resolve(ctx, req.ThreadID)
	if err != nil {
		return nil, err
	}

	requestID, err := gonanoid.New()
	if err != nil {
		lease.Release()
		return nil, fmt.Errorf("failed to generate request id: %w", err)
	}

	logger := logging.With(logging.FromContextOr(ctx, r.opts.Logger), "request_id", requestID, "thread_id", lease.ThreadID)

	ctx, cancel := context.WithCancel(logging.NewContext(ctx, logger))
	r.mu.Lock()
	r.activeRuns[requestID] = cancel
	r.mu.Unlock()

	conv := lease.Conversation()

	logger.Info("runner.run.start", "thread_created", lease.Created, "history", conv.Len())

	s := stream.New(ctx, func(ctx context.Context, sink stream.Sink) error {
		if err := r.engine.Run(ctx, conv, req.Input, sink); err != nil {
			// Free the thread before the error marker reaches the client.
			lease.Release()
			return err
		}
		return nil
	}, func(o *stream.Options) {
		o.BufferSize = r.opts.EventBufferSize
		o.Logger = logger
		o.Metrics = r.opts.Metrics
		o.Preamble = []core.StreamEvent{core.NewMetadataEvent(
			"request_id", requestID,
			"thread_id", lease.ThreadID,
			"thread_created", lease.Created,
			"timestamp", time.Now().UTC().Format(time.RFC3339Nano),
		)}
		o.OnComplete = func(ctx context.Context) error {
			return r.registry.Commit(ctx, lease, conv)
		}
	})

	go func() {
		<-s.Done()
		lease.Release()
		cancel()

		r.mu.Lock()
		delete(r.activeRuns, requestID)
		r.mu.Unlock()

		if err := s.Err(); err != nil {
			logger.Warn("runner.run.aborted", "error", err)
			return
		}
		logger.Info("runner.run.committed")
	}()

	return &Run{
		ThreadID:  lease.ThreadID,
		Created:   lease.Created,
		RequestID: requestID,
		Stream:    s,
	}, nil
}

// Invoke runs a loop execution to completion and returns every event. The
// error is the stream error, if any.
func (r *Runner) Invoke(ctx context.Context, req Request) (*Result, error) {
	run, err := r.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	events, err := stream.Collect(ctx, run.Stream)

	return &Result{ThreadID: run.ThreadID, RequestID: run.RequestID, Events: events}, err
}

// Cancel cancels a running loop execution by request id.
func (r *Runner) Cancel(requestID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[requestID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("run %s not found", requestID)
	}

	cancel()

	return nil
}

// Active returns the number of in-flight loop executions.
func (r *Runner) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.activeRuns)
}
