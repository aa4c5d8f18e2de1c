package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

var _ model.Model = (*Model)(nil)

type mockClient struct{ mock.Mock }

func (m *mockClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	args := m.Called(ctx, model, contents, config)
	resp, _ := args.Get(0).(*genai.GenerateContentResponse)
	return resp, args.Error(1)
}

func collect(respCh <-chan model.Response, errCh <-chan error) ([]model.Response, error) {
	var out []model.Response
	for r := range respCh {
		out = append(out, r)
	}
	return out, <-errCh
}

func TestGenerate_FunctionCallWithoutID(t *testing.T) {
	client := &mockClient{}
	client.On("GenerateContent", mock.Anything, "gemini-2.0-flash", mock.Anything, mock.Anything).Return(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{
				FunctionCall: &genai.FunctionCall{Name: "search", Args: map[string]any{"query": "weather in Paris"}},
			}}},
			FinishReason: genai.FinishReasonStop,
		}},
	}, nil)

	m := NewModelFromClient(client)
	resps, err := collect(m.Generate(context.Background(), model.Request{
		Instructions: "be brief",
		Messages:     []core.Message{core.NewUserMessage("What's the weather in Paris?")},
	}))
	require.NoError(t, err)
	require.Len(t, resps, 1)

	msg := resps[0].Message
	require.Len(t, msg.ToolCalls, 1)
	assert.NotEmpty(t, msg.ToolCalls[0].ID)
	assert.Equal(t, "search", msg.ToolCalls[0].Name)
	assert.Equal(t, "tool_calls", resps[0].FinishReason)
	client.AssertExpectations(t)
}

func TestGenerate_Error(t *testing.T) {
	client := &mockClient{}
	client.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("quota"))

	_, err := collect(NewModelFromClient(client).Generate(context.Background(), model.Request{}))
	assert.ErrorContains(t, err, "quota")
}

func TestToContents_GroupsFunctionResponses(t *testing.T) {
	contents := toContents([]core.Message{
		core.NewUserMessage("q"),
		core.NewAssistantMessage("", core.ToolCallRequest{ID: "a", Name: "search"}, core.ToolCallRequest{ID: "b", Name: "search"}),
		core.NewToolMessage(core.ToolResult{CallID: "a", Name: "search", Content: "one"}),
		core.NewToolMessage(core.ToolResult{CallID: "b", Name: "search", Content: "boom", IsError: true}),
		core.NewAssistantMessage("done"),
	})

	require.Len(t, contents, 4)
	assert.Equal(t, "model", contents[1].Role)
	require.Len(t, contents[2].Parts, 2)
	assert.Equal(t, "one", contents[2].Parts[0].FunctionResponse.Response["content"])
	assert.Equal(t, "boom", contents[2].Parts[1].FunctionResponse.Response["error"])
}

func TestFromResponse_NoCandidates(t *testing.T) {
	_, _, err := fromResponse(&genai.GenerateContentResponse{})
	assert.ErrorIs(t, err, core.ErrMalformedResponse)
}

func TestToSchema(t *testing.T) {
	s := toSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "search terms"},
			"tags":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"query"},
	})
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, "search terms", s.Properties["query"].Description)
	assert.Equal(t, genai.TypeString, s.Properties["tags"].Items.Type)
	assert.Equal(t, []string{"query"}, s.Required)
}
