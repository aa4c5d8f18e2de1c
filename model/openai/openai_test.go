package openai

import (
	"testing"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ model.Model = (*Model)(nil)

func TestBuildMessages_PreservesToolPairing(t *testing.T) {
	req := model.Request{
		Instructions: "You are a helpful assistant.",
		Messages: []core.Message{
			core.NewUserMessage("What's the weather in Paris?"),
			core.NewAssistantMessage("", core.ToolCallRequest{
				ID:        "call-1",
				Name:      "search",
				Arguments: map[string]any{"query": "weather in Paris"},
			}),
			core.NewToolMessage(core.ToolResult{CallID: "call-1", Name: "search", Content: "22C, sunny"}),
			core.NewAssistantMessage("It's 22C and sunny in Paris."),
		},
	}

	msgs, err := buildMessages(req)
	require.NoError(t, err)
	require.Len(t, msgs, 5)

	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "call-1", msgs[2].OfAssistant.ToolCalls[0].ID)
	assert.JSONEq(t, `{"query":"weather in Paris"}`, msgs[2].OfAssistant.ToolCalls[0].Function.Arguments)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "call-1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfAssistant)
}

func TestToolCallAggregator_OrdersByIndex(t *testing.T) {
	agg := newToolCallAggregator()
	agg.add(1, "call-b", "search", `{"query":`)
	agg.add(0, "call-a", "search", `{"query":"a"}`)
	agg.add(1, "", "", `"b"}`)

	calls, err := agg.requests()
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "call-a", calls[0].ID)
	assert.Equal(t, "call-b", calls[1].ID)
	assert.Equal(t, "b", calls[1].Arguments["query"])
}

func TestDecodeArguments(t *testing.T) {
	args, err := decodeArguments("search", "")
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = decodeArguments("search", "{not json")
	assert.ErrorIs(t, err, core.ErrMalformedResponse)
}

func TestBuildParams_Tools(t *testing.T) {
	m := NewModelFromClient(nil, func(o *Options) { o.Model = "gpt-4o-mini" })
	params := m.buildParams(model.Request{
		Tools: []model.ToolDefinition{model.NewToolDefinition("search", "Search the web", map[string]any{"type": "object"})},
	}, nil)

	require.Len(t, params.Tools, 1)
	assert.Equal(t, "search", params.Tools[0].Function.Name)
	assert.Equal(t, "gpt-4o-mini", params.Model)
	assert.Equal(t, "openai", m.Info().Provider)
}
