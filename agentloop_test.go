package agentloop

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentLoop_InvokeWithTool(t *testing.T) {
	m := model.NewScriptedModel(
		model.Turn{Calls: []core.ToolCallRequest{{ID: "call_1", Name: "add", Arguments: map[string]any{"a": 2, "b": 3}}}},
		model.Turn{Text: "2 + 3 = 5"},
		model.Turn{Text: "You asked me to add."},
	)

	add := tool.NewFunctionTool("add", "Add two numbers", nil, func(_ context.Context, args map[string]any) (any, error) {
		assert.Len(t, args, 2)
		return 5, nil
	})

	loop := New(m, func(o *Options) { o.Tools = []tool.Tool{add} })
	assert.Equal(t, []string{"add"}, loop.Tools())

	res, err := loop.Invoke(context.Background(), "", "What is 2 + 3?")
	require.NoError(t, err)
	assert.Equal(t, "2 + 3 = 5", res.Text())

	res2, err := loop.Invoke(context.Background(), res.ThreadID, "What did I ask?")
	require.NoError(t, err)
	assert.Equal(t, res.ThreadID, res2.ThreadID)

	th, err := loop.Thread(context.Background(), res.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, 6, th.Conversation.Len())
}

func TestAgentLoop_UnknownThread(t *testing.T) {
	loop := New(model.NewScriptedModel())

	_, err := loop.Thread(context.Background(), "missing")
	assert.True(t, errors.Is(err, core.ErrThreadNotFound))
}
