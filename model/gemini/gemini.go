// Package gemini provides an implementation of model.Model on top of the
// Google Gen AI SDK (google.golang.org/genai). Generation is non-streaming;
// the full text arrives in the final response.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
	"google.golang.org/genai"
)

// Client is the subset of the Gen AI SDK used by the adapter.
type Client interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// sdkClient adapts *genai.Client to Client.
type sdkClient struct {
	client *genai.Client
}

func (c *sdkClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return c.client.Models.GenerateContent(ctx, model, contents, config)
}

// Options configures the Gemini adapter.
type Options struct {
	Model       string
	Temperature float32
	APIKey      string
}

// Model wraps the Gemini GenerateContent API behind the generic model.Model interface.
type Model struct {
	client Client
	opts   Options
}

func defaultOptions() Options {
	return Options{Model: "gemini-2.0-flash", Temperature: 0}
}

// NewModel creates a Gemini model backed by the official SDK client.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Model{client: &sdkClient{client: client}, opts: opts}, nil
}

// NewModelFromClient creates a Gemini model from an existing Client.
func NewModelFromClient(client Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		temperature := m.opts.Temperature
		config := &genai.GenerateContentConfig{
			Temperature: &temperature,
			Tools:       toTools(req.Tools),
		}
		if req.Instructions != "" {
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(req.Instructions)}}
		}

		resp, err := m.client.GenerateContent(ctx, m.opts.Model, toContents(req.Messages), config)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		msg, finish, err := fromResponse(resp)
		if err != nil {
			errCh <- err
			return
		}

		r := model.Response{Message: msg, FinishReason: finish}
		if u := resp.UsageMetadata; u != nil {
			r.Usage = &model.TokenUsage{
				PromptTokens:     int(u.PromptTokenCount),
				CompletionTokens: int(u.CandidatesTokenCount),
				TotalTokens:      int(u.TotalTokenCount),
			}
		}
		if err := model.Send(ctx, out, r); err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

// toContents maps the conversation to Gemini contents. Tool results travel as
// function responses in a user turn; consecutive results share one content.
func toContents(msgs []core.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	var results *genai.Content

	for _, msg := range msgs {
		if msg.Role == core.RoleTool {
			if results == nil {
				results = &genai.Content{Role: "user"}
				contents = append(contents, results)
			}
			key := "content"
			if msg.IsError {
				key = "error"
			}
			results.Parts = append(results.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolCallID,
					Name:     msg.Name,
					Response: map[string]any{key: msg.Content},
				},
			})
			continue
		}
		results = nil

		role := "user"
		if msg.Role == core.RoleAssistant {
			role = "model"
		}
		parts := make([]*genai.Part, 0, len(msg.ToolCalls)+1)
		if msg.Content != "" {
			parts = append(parts, genai.NewPartFromText(msg.Content))
		}
		for _, call := range msg.ToolCalls {
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{ID: call.ID, Name: call.Name, Args: call.Arguments},
			})
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	return contents
}

// fromResponse extracts the assistant message from the first candidate.
// Gemini may omit call ids; missing ones are synthesized.
func fromResponse(resp *genai.GenerateContentResponse) (core.Message, string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return core.Message{}, "", fmt.Errorf("%w: no candidates in response", core.ErrMalformedResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return core.Message{}, "", fmt.Errorf("gemini: content blocked by safety filters")
	}

	var (
		text  strings.Builder
		calls []core.ToolCallRequest
	)
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.FunctionCall != nil {
				id := part.FunctionCall.ID
				if id == "" {
					id = core.NewID()
				}
				args := part.FunctionCall.Args
				if args == nil {
					args = map[string]any{}
				}
				calls = append(calls, core.ToolCallRequest{ID: id, Name: part.FunctionCall.Name, Arguments: args})
				continue
			}
			text.WriteString(part.Text)
		}
	}

	finish := strings.ToLower(string(candidate.FinishReason))
	if len(calls) > 0 {
		finish = "tool_calls"
	}
	return core.NewAssistantMessage(text.String(), calls...), finish, nil
}

// toTools converts tool definitions into a single Gemini tool with function declarations.
func toTools(defs []model.ToolDefinition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		fd := &genai.FunctionDeclaration{
			Name:        d.Function.Name,
			Description: d.Function.Description,
		}
		if d.Function.Parameters != nil {
			fd.Parameters = toSchema(d.Function.Parameters)
		}
		decls = append(decls, fd)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toSchema converts a JSON Schema map into a genai.Schema.
func toSchema(m map[string]any) *genai.Schema {
	s := &genai.Schema{Type: toType(m["type"])}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	switch req := m["required"].(type) {
	case []string:
		s.Required = req
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	switch enum := m["enum"].(type) {
	case []string:
		s.Enum = enum
	case []any:
		for _, e := range enum {
			s.Enum = append(s.Enum, fmt.Sprint(e))
		}
	}
	return s
}

func toType(v any) genai.Type {
	switch v {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini", SupportsTools: true}
}
