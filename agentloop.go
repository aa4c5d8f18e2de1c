// Package agentloop provides a high-level façade over the agent engine, the
// thread session registry and the runner. Most applications interact with
// this package by:
//  1. Creating an AgentLoop via New() with a model and optional tools
//  2. Streaming a turn (Stream) or running it to completion (Invoke)
//  3. Continuing the conversation by passing the returned thread id back in
//
// All defaults are safe for local development and testing; production
// deployments typically supply a durable session.Store and a structured logger.
package agentloop

import (
	"context"
	"time"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/metrics"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/runner"
	"github.com/hupe1980/agentloop/session"
	"github.com/hupe1980/agentloop/tool"
)

// Options configures the AgentLoop instance.
type Options struct {
	// Instructions is the system prompt template (defaults to agent.DefaultInstructions).
	Instructions string
	// Tools offered to the model.
	Tools []tool.Tool
	// ToolTimeout bounds each tool invocation.
	ToolTimeout time.Duration
	// MaxIterations caps model invocations per turn (0 = unlimited).
	MaxIterations int
	// MaxParallelTools enables bounded parallel tool execution when > 1.
	MaxParallelTools int
	// EventBufferSize sets the channel buffer between the loop and the consumer.
	EventBufferSize int

	// Store persists threads (defaults to an in-memory store if not provided).
	Store session.Store

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
	// Metrics (optional)
	Metrics *metrics.Metrics
}

// AgentLoop is the high-level façade aggregating engine, sessions and runner.
type AgentLoop struct {
	opts   Options
	tools  *tool.Registry
	runner *runner.Runner
}

// New creates a new AgentLoop for m. Duplicate tool names panic.
func New(m model.Model, optFns ...func(o *Options)) *AgentLoop {
	opts := Options{
		Instructions:     agent.DefaultInstructions,
		ToolTimeout:      15 * time.Second,
		MaxIterations:    25,
		MaxParallelTools: 1,
		EventBufferSize:  16,
		Logger:           logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore()
	}

	tools := tool.NewRegistry(func(o *tool.RegistryOptions) {
		o.Timeout = opts.ToolTimeout
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})
	for _, t := range opts.Tools {
		tools.MustRegister(t)
	}

	engine := agent.New(m, tools, func(o *agent.Options) {
		o.Instruction = agent.NewInstructionFromText(opts.Instructions)
		o.MaxIterations = opts.MaxIterations
		o.MaxParallelTools = opts.MaxParallelTools
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	sessions := session.NewRegistry(opts.Store, func(o *session.RegistryOptions) {
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	r := runner.New(engine, sessions, func(o *runner.Options) {
		o.EventBufferSize = opts.EventBufferSize
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	return &AgentLoop{opts: opts, tools: tools, runner: r}
}

// Runner exposes the underlying runner, e.g. to mount the HTTP server on it.
func (a *AgentLoop) Runner() *runner.Runner { return a.runner }

// Tools returns the registered tool names in sorted order.
func (a *AgentLoop) Tools() []string { return a.tools.Names() }

// Stream starts a turn on threadID (empty creates a new thread) and returns
// the running stream.
func (a *AgentLoop) Stream(ctx context.Context, threadID, input string) (*runner.Run, error) {
	return a.runner.Stream(ctx, runner.Request{Input: input, ThreadID: threadID})
}

// Invoke runs a turn to completion and returns every event.
func (a *AgentLoop) Invoke(ctx context.Context, threadID, input string) (*runner.Result, error) {
	return a.runner.Invoke(ctx, runner.Request{Input: input, ThreadID: threadID})
}

// Thread returns a snapshot of a stored thread.
func (a *AgentLoop) Thread(ctx context.Context, id string) (*core.Thread, error) {
	return a.runner.Registry().Get(ctx, id)
}
