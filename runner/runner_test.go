package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/testutil"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/session"
	"github.com/hupe1980/agentloop/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner(t *testing.T, m model.Model, optFns ...func(o *agent.Options)) (*Runner, *session.Registry) {
	t.Helper()
	reg := tool.NewRegistry()
	reg.MustRegister(tool.NewFunctionTool("search", "Search the web", nil, func(context.Context, map[string]any) (any, error) {
		return "22C, sunny", nil
	}))
	sessions := session.NewRegistry(nil)
	return New(agent.New(m, reg, optFns...), sessions), sessions
}

func TestRunner_ScenarioToolCall(t *testing.T) {
	m := model.NewScriptedModel(
		model.Turn{Calls: []core.ToolCallRequest{{ID: "call_1", Name: "search", Arguments: map[string]any{"query": "weather in Paris"}}}},
		model.Turn{Text: "It's 22C and sunny in Paris."},
	)
	r, sessions := newRunner(t, m)

	res, err := r.Invoke(context.Background(), Request{Input: "What's the weather in Paris?"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		core.EventTypeMetadata,
		core.EventTypeToolStart,
		core.EventTypeToolEnd,
		core.EventTypeToken,
		core.EventTypeMetadata,
	}, testutil.CompactTypes(res.Events))

	first := res.Events[0].(core.MetadataEvent)
	assert.Equal(t, true, first.Values["thread_created"])
	assert.Equal(t, res.ThreadID, first.Values["thread_id"])
	assert.Equal(t, res.RequestID, first.Values["request_id"])

	end := res.Events[2].(core.ToolEndEvent)
	assert.Equal(t, "22C, sunny", end.Result.Content)
	assert.Equal(t, "It's 22C and sunny in Paris.", res.Text())
	assert.True(t, core.IsTerminal(res.Events[len(res.Events)-1]))

	thread, err := sessions.Get(context.Background(), res.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, 4, thread.Conversation.Len())
	assert.False(t, sessions.Busy(res.ThreadID))
}

func TestRunner_ScenarioDirectAnswer(t *testing.T) {
	r, _ := newRunner(t, model.NewScriptedModel(model.Turn{Text: "Hi there!"}))

	res, err := r.Invoke(context.Background(), Request{Input: "Hello"})
	require.NoError(t, err)

	assert.Equal(t, []string{core.EventTypeMetadata, core.EventTypeToken, core.EventTypeMetadata}, testutil.CompactTypes(res.Events))
	assert.Equal(t, "Hi there!", res.Text())
}

func TestRunner_ScenarioModelTimeout(t *testing.T) {
	m := model.NewScriptedModel(model.Turn{Text: "late", Delay: time.Second})
	r, sessions := newRunner(t, m, func(o *agent.Options) { o.ModelTimeout = 20 * time.Millisecond })

	res, err := r.Invoke(context.Background(), Request{Input: "Hello", ThreadID: "t-timeout"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrModelInvocationFailed)

	require.Len(t, res.Events, 2)
	assert.IsType(t, core.MetadataEvent{}, res.Events[0])
	errEv, ok := res.Events[1].(core.ErrorEvent)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(errEv.Message, "Stream error: "))

	_, err = sessions.Get(context.Background(), "t-timeout")
	assert.ErrorIs(t, err, core.ErrThreadNotFound)
	assert.False(t, sessions.Busy("t-timeout"))
}

func TestRunner_ThreadContinuity(t *testing.T) {
	m := model.NewScriptedModel(model.Turn{Text: "Hi Ada!"}, model.Turn{Text: "Your name is Ada."})
	r, _ := newRunner(t, m)
	ctx := context.Background()

	first, err := r.Invoke(ctx, Request{Input: "I'm Ada"})
	require.NoError(t, err)

	second, err := r.Invoke(ctx, Request{Input: "What's my name?", ThreadID: first.ThreadID})
	require.NoError(t, err)
	assert.Equal(t, first.ThreadID, second.ThreadID)
	assert.Equal(t, false, second.Events[0].(core.MetadataEvent).Values["thread_created"])

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[1].Messages, 3)
	assert.Equal(t, "I'm Ada", reqs[1].Messages[0].Content)
	assert.Equal(t, "Hi Ada!", reqs[1].Messages[1].Content)
	assert.Equal(t, "What's my name?", reqs[1].Messages[2].Content)
}

func TestRunner_ThreadBusy(t *testing.T) {
	m := model.NewScriptedModel(model.Turn{Text: "slow", Delay: time.Second})
	r, _ := newRunner(t, m)
	ctx := context.Background()

	run, err := r.Stream(ctx, Request{Input: "one", ThreadID: "shared"})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Active())

	_, err = r.Stream(ctx, Request{Input: "two", ThreadID: "shared"})
	assert.ErrorIs(t, err, core.ErrThreadBusy)

	require.NoError(t, r.Cancel(run.RequestID))
	run.Stream.Close()

	assert.Eventually(t, func() bool { return r.Active() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRunner_CancellationDoesNotCommit(t *testing.T) {
	m := model.NewScriptedModel(model.Turn{Text: "never", Delay: time.Second})
	r, sessions := newRunner(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	run, err := r.Stream(ctx, Request{Input: "Hello", ThreadID: "t-cancel"})
	require.NoError(t, err)

	ev, ok := run.Stream.Next(context.Background())
	require.True(t, ok)
	assert.IsType(t, core.MetadataEvent{}, ev)

	cancel()

	var rest []core.StreamEvent
	for ev := range run.Stream.Events() {
		rest = append(rest, ev)
	}
	assert.Empty(t, rest)
	assert.ErrorIs(t, run.Stream.Err(), context.Canceled)

	assert.Eventually(t, func() bool { return !sessions.Busy("t-cancel") }, time.Second, 5*time.Millisecond)
	_, err = sessions.Get(context.Background(), "t-cancel")
	assert.ErrorIs(t, err, core.ErrThreadNotFound)
}

// disconnectAfterRun runs the real engine to completion and then cancels,
// as a client dropping the connection right after the final token would.
type disconnectAfterRun struct {
	engine Engine
	cancel context.CancelFunc
}

func (d *disconnectAfterRun) Run(ctx context.Context, conv *core.Conversation, input string, sink agent.Sink) error {
	if err := d.engine.Run(ctx, conv, input, sink); err != nil {
		return err
	}
	d.cancel()
	return nil
}

func TestRunner_DisconnectAfterFinalTokenDoesNotCommit(t *testing.T) {
	sessions := session.NewRegistry(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := &disconnectAfterRun{
		engine: agent.New(model.NewScriptedModel(model.Turn{Text: "Hi there!"}), nil),
		cancel: cancel,
	}
	r := New(eng, sessions)

	run, err := r.Stream(ctx, Request{Input: "Hello", ThreadID: "t-drop"})
	require.NoError(t, err)

	var last core.StreamEvent
	for ev := range run.Stream.Events() {
		last = ev
	}
	require.NotNil(t, last)
	assert.False(t, core.IsTerminal(last))
	assert.ErrorIs(t, run.Stream.Err(), context.Canceled)

	assert.Eventually(t, func() bool { return !sessions.Busy("t-drop") }, time.Second, 5*time.Millisecond)
	_, err = sessions.Get(context.Background(), "t-drop")
	assert.ErrorIs(t, err, core.ErrThreadNotFound)
}

func TestRunner_CancelUnknown(t *testing.T) {
	r, _ := newRunner(t, model.NewScriptedModel())
	assert.Error(t, r.Cancel("nope"))
}
