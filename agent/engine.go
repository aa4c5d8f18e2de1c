package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/metrics"
	"github.com/hupe1980/agentloop/model"
)

// Invoker executes tool call requests. Failures are reported through an error
// flagged core.ToolResult, never as a Go error.
type Invoker interface {
	Invoke(ctx context.Context, call core.ToolCallRequest) core.ToolResult
}

// DefinitionProvider is implemented by invokers that can describe their tools
// to the model, such as *tool.Registry.
type DefinitionProvider interface {
	Definitions() []model.ToolDefinition
}

// Options configures an Engine.
//
// Use functional options with New to override defaults.
type Options struct {
	Instruction      Instruction
	Tools            []model.ToolDefinition
	MaxIterations    int
	ModelTimeout     time.Duration
	Streaming        bool
	MaxParallelTools int
	Logger           logging.Logger
	Metrics          *metrics.Metrics
}

// Engine runs the agent loop. An Engine holds no per-run state and may serve
// any number of concurrent runs on distinct conversations.
type Engine struct {
	model    model.Model
	invoker  Invoker
	tools    []model.ToolDefinition
	executor *toolExecutor
	opts     Options
}

// New creates an Engine with sensible defaults:
//   - the default helpful assistant instruction
//   - tool definitions taken from the invoker when it implements DefinitionProvider
//   - at most 25 model invocations per run
//   - 60 second timeout per model invocation
//   - streaming enabled, tools executed sequentially
func New(m model.Model, invoker Invoker, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Instruction:      NewInstructionFromText(DefaultInstructions),
		MaxIterations:    25,
		ModelTimeout:     60 * time.Second,
		Streaming:        true,
		MaxParallelTools: 1,
		Logger:           logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if invoker == nil {
		invoker = noTools{}
	}

	tools := opts.Tools
	if tools == nil {
		if dp, ok := invoker.(DefinitionProvider); ok {
			tools = dp.Definitions()
		}
	}

	return &Engine{
		model:    m,
		invoker:  invoker,
		tools:    tools,
		executor: newToolExecutor(invoker, opts.MaxParallelTools),
		opts:     opts,
	}
}

// Model returns the engine's model.
func (e *Engine) Model() model.Model { return e.model }

// Run executes one loop: input is appended to conv as a user message, then the
// model and the tools are alternated until the model answers without tool
// calls. conv is mutated in place; callers wanting to discard a failed run
// should pass a clone.
//
// The returned error wraps core.ErrModelInvocationFailed for model failures
// (including the iteration cap) and wraps the context error on cancellation.
func (e *Engine) Run(ctx context.Context, conv *core.Conversation, input string, sink Sink) error {
	if sink == nil {
		sink = Discard
	}

	logger := logging.FromContextOr(ctx, e.opts.Logger)
	ctx = logging.NewContext(ctx, logger)

	if err := conv.Append(core.NewUserMessage(input)); err != nil {
		return err
	}

	r := &run{
		engine:  e,
		conv:    conv,
		sink:    sink,
		logger:  logger,
		limiter: core.NewIterationLimiter(e.opts.MaxIterations),
		state:   StateAwaitingModel,
	}

	start := time.Now()
	err := r.loop(ctx)

	outcome := "completed"
	switch {
	case err == nil:
	case ctx.Err() != nil:
		outcome = "cancelled"
	default:
		outcome = "failed"
	}
	e.opts.Metrics.RecordRun(outcome, r.limiter.Count())

	logger.Info("agent.run.finished",
		"outcome", outcome,
		"iterations", r.limiter.Count(),
		"messages", conv.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return err
}

// run holds the state of a single loop execution.
type run struct {
	engine  *Engine
	conv    *core.Conversation
	sink    Sink
	logger  logging.Logger
	limiter *core.IterationLimiter
	state   State
	pending []core.ToolCallRequest
}

func (r *run) loop(ctx context.Context) error {
	for !r.state.Terminal() {
		if err := ctx.Err(); err != nil {
			r.transition(StateFailed)
			return err
		}

		var err error
		switch r.state {
		case StateAwaitingModel:
			err = r.awaitModel(ctx)
		case StateAwaitingTools:
			err = r.awaitTools(ctx)
		}

		if err != nil {
			r.transition(StateFailed)
			if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
				return fmt.Errorf("%w: %w", ctxErr, err)
			}
			return err
		}
	}
	return nil
}

func (r *run) transition(to State) {
	r.logger.Debug("agent.state.transition", "from", r.state.String(), "to", to.String(), "iteration", r.limiter.Count())
	r.state = to
}

func (r *run) awaitModel(ctx context.Context) error {
	if err := r.limiter.Increment(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrModelInvocationFailed, err)
	}

	msg, err := r.invokeModel(ctx)
	if err != nil {
		return err
	}

	resp, err := core.Classify(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrModelInvocationFailed, err)
	}

	if err := r.conv.Append(msg); err != nil {
		return fmt.Errorf("%w: %w", core.ErrModelInvocationFailed, err)
	}

	switch v := resp.(type) {
	case core.ToolRequest:
		r.pending = v.Calls
		r.transition(StateAwaitingTools)
	case core.Answer:
		r.transition(StateDone)
	}

	return nil
}

func (r *run) awaitTools(ctx context.Context) error {
	calls := r.pending
	r.pending = nil

	results, err := r.engine.executor.execute(ctx, calls, r.sink)
	if err != nil {
		return err
	}

	for _, res := range results {
		if err := r.conv.Append(core.NewToolMessage(res)); err != nil {
			return err
		}
	}

	r.transition(StateAwaitingModel)
	return nil
}

// invokeModel performs one model call, forwarding partial text as token
// events, and returns the final assistant message.
func (r *run) invokeModel(ctx context.Context) (core.Message, error) {
	e := r.engine
	info := e.model.Info()

	instructions, err := e.opts.Instruction.Resolve(ctx, r.conv)
	if err != nil {
		return core.Message{}, fmt.Errorf("%w: resolve instruction: %w", core.ErrModelInvocationFailed, err)
	}

	mctx, cancel := ctx, context.CancelFunc(func() {})
	if e.opts.ModelTimeout > 0 {
		mctx, cancel = context.WithTimeout(ctx, e.opts.ModelTimeout)
	}
	defer cancel()

	req := model.Request{
		Instructions: instructions,
		Messages:     r.conv.Messages(),
		Tools:        e.tools,
		Stream:       e.opts.Streaming,
	}

	r.logger.Debug("agent.model.start",
		"model", info.Name,
		"provider", info.Provider,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
		"iteration", r.limiter.Count(),
	)

	start := time.Now()
	msg, err := r.collect(ctx, mctx, req)
	dur := time.Since(start)

	if err != nil {
		e.opts.Metrics.RecordModelCall(info.Provider, "error", dur)
		r.logger.Error("agent.model.error", "provider", info.Provider, "duration_ms", dur.Milliseconds(), "error", err)
		return core.Message{}, err
	}

	e.opts.Metrics.RecordModelCall(info.Provider, "success", dur)
	r.logger.Debug("agent.model.done",
		"provider", info.Provider,
		"duration_ms", dur.Milliseconds(),
		"tool_calls", len(msg.ToolCalls),
	)

	return msg, nil
}

func (r *run) collect(ctx, mctx context.Context, req model.Request) (core.Message, error) {
	respCh, errCh := r.engine.model.Generate(mctx, req)

	var (
		final    *model.Response
		genErr   error
		streamed bool
	)

	for respCh != nil || errCh != nil {
		select {
		case <-mctx.Done():
			return core.Message{}, r.modelContextError(ctx, mctx)
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				if resp.Delta == "" {
					continue
				}
				if err := r.sink.Send(ctx, core.TokenEvent{Text: resp.Delta}); err != nil {
					return core.Message{}, err
				}
				streamed = true
				continue
			}
			final = &resp
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil && genErr == nil {
				genErr = err
			}
		}
	}

	if genErr != nil {
		if mctx.Err() != nil {
			return core.Message{}, r.modelContextError(ctx, mctx)
		}
		return core.Message{}, fmt.Errorf("%w: %w", core.ErrModelInvocationFailed, genErr)
	}

	if final == nil {
		return core.Message{}, fmt.Errorf("%w: %w: stream ended without a final response", core.ErrModelInvocationFailed, core.ErrMalformedResponse)
	}

	msg := final.Message
	if msg.Role == "" {
		msg.Role = core.RoleAssistant
	}

	if !streamed && msg.Content != "" {
		if err := r.sink.Send(ctx, core.TokenEvent{Text: msg.Content}); err != nil {
			return core.Message{}, err
		}
	}

	return msg, nil
}

// modelContextError distinguishes caller cancellation from the per-call timeout.
func (r *run) modelContextError(ctx, mctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: model call timed out after %s: %w", core.ErrModelInvocationFailed, r.engine.opts.ModelTimeout, mctx.Err())
}

// noTools is the invoker used when an engine has no tools.
type noTools struct{}

func (noTools) Invoke(_ context.Context, call core.ToolCallRequest) core.ToolResult {
	return core.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: fmt.Sprintf("%v: %q", core.ErrToolNotFound, call.Name),
		IsError: true,
	}
}
