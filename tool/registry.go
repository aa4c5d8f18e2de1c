package tool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/metrics"
	"github.com/hupe1980/agentloop/model"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Timeout bounds a single tool call. Zero disables the bound.
	Timeout time.Duration
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Registry maps model visible tool names to implementations and executes tool
// call requests. Invoke never returns an error: every failure is folded into
// an error flagged core.ToolResult so the model can observe it.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	opts  RegistryOptions
}

// NewRegistry creates an empty registry with a 15s default call timeout.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{
		Timeout: 15 * time.Second,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{tools: make(map[string]Tool), opts: opts}
}

// Register adds tools. Names must be unique and non-empty.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		name := t.Name()
		if name == "" {
			return errors.New("tool name must not be empty")
		}
		if _, exists := r.tools[name]; exists {
			return fmt.Errorf("tool %q already registered", name)
		}
		r.tools[name] = t
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(tools ...Tool) {
	if err := r.Register(tools...); err != nil {
		panic(err)
	}
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the tool declarations advertised to the model, sorted by name.
func (r *Registry) Definitions() []model.ToolDefinition {
	names := r.Names()
	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		t, _ := r.Get(name)
		defs = append(defs, model.NewToolDefinition(t.Name(), t.Description(), t.Parameters()))
	}
	return defs
}

// Invoke executes a single tool call request and returns its result. The
// result always carries call.ID and call.Name.
func (r *Registry) Invoke(ctx context.Context, call core.ToolCallRequest) core.ToolResult {
	logger := r.logger(ctx)
	start := time.Now()

	res := core.ToolResult{CallID: call.ID, Name: call.Name}

	t, ok := r.Get(call.Name)
	if !ok {
		err := &ToolError{
			Tool:    call.Name,
			Message: fmt.Sprintf("tool %q not found", call.Name),
			Code:    CodeNotFound,
			cause:   core.ErrToolNotFound,
		}
		logger.Warn("tool.invoke.not_found", "tool", call.Name, "call_id", call.ID)
		r.opts.Metrics.RecordToolCall(call.Name, true, time.Since(start))
		res.Content = err.Error()
		res.IsError = true
		return res
	}

	out, err := r.call(logging.NewContext(ctx, logger), t, call)
	dur := time.Since(start)
	r.opts.Metrics.RecordToolCall(call.Name, err != nil, dur)

	if err != nil {
		logger.Warn("tool.invoke.failed", "tool", call.Name, "call_id", call.ID, "duration_ms", dur.Milliseconds(), "error", err)
		res.Content = err.Error()
		res.IsError = true
		return res
	}

	logger.Debug("tool.invoke.done", "tool", call.Name, "call_id", call.ID, "duration_ms", dur.Milliseconds())
	res.Content = out
	return res
}

func (r *Registry) call(ctx context.Context, t Tool, call core.ToolCallRequest) (any, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}

	type outcome struct {
		value any
		err   error
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger(ctx).Error("tool.invoke.panic", "tool", t.Name(), "recover", p, "stack", string(debug.Stack()))
				done <- outcome{err: &ToolError{Tool: t.Name(), Message: fmt.Sprintf("panic: %v", p), Code: CodePanic}}
			}
		}()
		v, err := t.Call(ctx, args)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) {
			return nil, timeoutError(t.Name(), r.opts.Timeout, o.err)
		}
		return o.value, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError(t.Name(), r.opts.Timeout, ctx.Err())
		}
		return nil, WrapToolError(t.Name(), CodeExecution, ctx.Err())
	}
}

func (r *Registry) logger(ctx context.Context) logging.Logger {
	return logging.FromContextOr(ctx, r.opts.Logger)
}

func timeoutError(name string, d time.Duration, cause error) *ToolError {
	return &ToolError{
		Tool:    name,
		Message: fmt.Sprintf("timed out after %s", d),
		Code:    CodeTimeout,
		cause:   cause,
	}
}
