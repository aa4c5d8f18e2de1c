package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
)

// toolExecutor executes the tool calls of one assistant message. It must:
//   - Emit exactly one ToolStart and one ToolEnd per call, start before end
//   - Return exactly one result per call, in request order
//   - Never panic (recover internally and produce error results)
//   - Stop without emitting ToolEnd events once ctx is cancelled
type toolExecutor struct {
	invoker     Invoker
	maxParallel int
}

func newToolExecutor(invoker Invoker, maxParallel int) *toolExecutor {
	return &toolExecutor{invoker: invoker, maxParallel: maxParallel}
}

func (x *toolExecutor) execute(ctx context.Context, calls []core.ToolCallRequest, sink Sink) ([]core.ToolResult, error) {
	n := len(calls)
	if n == 0 {
		return nil, nil
	}

	// Fast path: sequential execution, each start immediately followed by its end.
	if x.maxParallel <= 1 || n == 1 {
		results := make([]core.ToolResult, 0, n)
		for _, call := range calls {
			if err := sink.Send(ctx, toolStart(call)); err != nil {
				return nil, err
			}
			res := x.invoke(ctx, call)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := sink.Send(ctx, core.ToolEndEvent{CallID: call.ID, Name: call.Name, Result: res}); err != nil {
				return nil, err
			}
			results = append(results, res)
		}
		return results, nil
	}

	logger := logging.FromContext(ctx)

	maxPar := x.maxParallel
	if maxPar > n {
		maxPar = n
	}

	for _, call := range calls {
		if err := sink.Send(ctx, toolStart(call)); err != nil {
			return nil, err
		}
	}

	results := make([]core.ToolResult, n)
	sem := make(chan struct{}, maxPar)
	var wg sync.WaitGroup

	batchStart := time.Now()
	for i := range calls {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, call core.ToolCallRequest) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = x.invoke(ctx, call)
		}(i, calls[i])
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, call := range calls {
		if err := sink.Send(ctx, core.ToolEndEvent{CallID: call.ID, Name: call.Name, Result: results[i]}); err != nil {
			return nil, err
		}
	}

	logger.Debug("agent.tools.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results, nil
}

func (x *toolExecutor) invoke(ctx context.Context, call core.ToolCallRequest) (res core.ToolResult) {
	logger := logging.FromContext(ctx)
	logger.Info("agent.tool.start", "tool", call.Name, "call_id", call.ID)

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			logger.Error("agent.tool.panic", "tool", call.Name, "recover", p, "stack", string(debug.Stack()))
			res = core.ToolResult{Content: fmt.Sprintf("%v: panic: %v", core.ErrToolExecutionFailed, p), IsError: true}
		}
		res.CallID, res.Name = call.ID, call.Name
		logger.Info("agent.tool.executed",
			"tool", call.Name,
			"call_id", call.ID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", res.IsError,
		)
	}()

	return x.invoker.Invoke(ctx, call)
}

func toolStart(call core.ToolCallRequest) core.ToolStartEvent {
	return core.ToolStartEvent{CallID: call.ID, Name: call.Name, Arguments: call.Clone().Arguments}
}
