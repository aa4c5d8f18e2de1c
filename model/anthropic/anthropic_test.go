package anthropic

import (
	"testing"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ model.Model = (*Model)(nil)

func TestBuildMessages_ToolResultsInUserTurn(t *testing.T) {
	msgs := buildMessages([]core.Message{
		core.NewUserMessage("Compare Paris and Rome weather"),
		core.NewAssistantMessage("",
			core.ToolCallRequest{ID: "c1", Name: "search", Arguments: map[string]any{"query": "Paris"}},
			core.ToolCallRequest{ID: "c2", Name: "search", Arguments: map[string]any{"query": "Rome"}},
		),
		core.NewToolMessage(core.ToolResult{CallID: "c1", Name: "search", Content: "22C"}),
		core.NewToolMessage(core.ToolResult{CallID: "c2", Name: "search", Content: "timeout", IsError: true}),
		core.NewAssistantMessage("Paris is 22C."),
	})

	require.Len(t, msgs, 4)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	require.Len(t, msgs[1].Content, 2)
	assert.NotNil(t, msgs[1].Content[0].OfToolUse)

	assert.Equal(t, "user", string(msgs[2].Role))
	require.Len(t, msgs[2].Content, 2)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "c1", msgs[2].Content[0].OfToolResult.ToolUseID)
	assert.Equal(t, "c2", msgs[2].Content[1].OfToolResult.ToolUseID)

	assert.Equal(t, "assistant", string(msgs[3].Role))
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{model.NewToolDefinition("search", "Search the web", map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}},
		"required":   []any{"query"},
	})})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "search", tools[0].OfTool.Name)
	assert.Equal(t, []string{"query"}, tools[0].OfTool.InputSchema.Required)
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"a"}, requiredFields([]string{"a"}))
	assert.Equal(t, []string{"a", "b"}, requiredFields([]any{"a", 1, "b"}))
	assert.Nil(t, requiredFields(nil))
}
