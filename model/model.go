package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewToolDefinition builds a function ToolDefinition.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type:     "function",
		Function: FunctionDefinition{Name: name, Description: description, Parameters: parameters},
	}
}

// Request captures the normalized model input produced by the agent loop.
type Request struct {
	Instructions string           `json:"instructions"` // System prompt
	Messages     []core.Message   `json:"messages"`     // Full conversation history
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// LastUserText returns the content of the most recent user message.
func (r Request) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == core.RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
//
// Partial responses carry only Delta text. Exactly one final response closes a
// successful generation; its Message holds the complete assistant text and any
// tool call requests, in the order the provider issued them. Tool call
// metadata never appears in partial responses.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Delta        string       `json:"delta,omitempty"`
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "gemini", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the agent loop to drive generation.
//
// Generate must close both channels when done and must stop promptly when ctx
// is cancelled. At most one error is sent.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Send delivers r on out unless ctx is cancelled first.
func Send(ctx context.Context, out chan<- Response, r Response) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- r:
		return nil
	}
}

// MockModel is a lightweight in‑memory Model useful for tests & examples. It
// answers with a canned completion for a known prompt or echoes the input.
type MockModel struct {
	info      Info
	mu        sync.RWMutex
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: false,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		input := req.LastUserText()
		m.mu.RLock()
		full := m.responses[input]
		m.mu.RUnlock()
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", input)
		}
		if req.Stream {
			for _, r := range full {
				if err := Send(ctx, respCh, Response{Partial: true, Delta: string(r)}); err != nil {
					errCh <- err
					return
				}
			}
		}
		if err := Send(ctx, respCh, Response{
			Message:      core.NewAssistantMessage(full),
			FinishReason: "stop",
		}); err != nil {
			errCh <- err
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// Turn is one scripted model response.
type Turn struct {
	// Text is the assistant text. When streaming it is delivered in Chunks if
	// set, otherwise split on spaces.
	Text   string
	Chunks []string
	// Calls are the tool call requests of the turn.
	Calls []core.ToolCallRequest
	// Err makes the turn fail after any chunks were delivered.
	Err error
	// Delay is waited (honouring cancellation) before the turn produces anything.
	Delay time.Duration
	// SkipFinal closes the response channel without a final response.
	SkipFinal bool
}

// ScriptedModel replays a fixed sequence of turns, one per Generate call, and
// records every request it receives. Useful for driving the agent loop in tests.
type ScriptedModel struct {
	mu       sync.Mutex
	turns    []Turn
	next     int
	requests []Request
	info     Info
}

// NewScriptedModel constructs a ScriptedModel.
func NewScriptedModel(turns ...Turn) *ScriptedModel {
	return &ScriptedModel{
		turns: turns,
		info:  Info{Name: "scripted", Provider: "mock", SupportsTools: true},
	}
}

// Requests returns the requests received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate invocations.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var (
		turn Turn
		ok   bool
	)
	if m.next < len(m.turns) {
		turn, ok = m.turns[m.next], true
		m.next++
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if !ok {
			errCh <- fmt.Errorf("scripted model: no turn left for call %d", m.Calls())
			return
		}
		if turn.Delay > 0 {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case <-time.After(turn.Delay):
			}
		}
		if req.Stream {
			chunks := turn.Chunks
			if chunks == nil {
				chunks = splitKeepSpaces(turn.Text)
			}
			for _, c := range chunks {
				if err := Send(ctx, respCh, Response{Partial: true, Delta: c}); err != nil {
					errCh <- err
					return
				}
			}
		}
		if turn.Err != nil {
			errCh <- turn.Err
			return
		}
		if turn.SkipFinal {
			return
		}
		finish := "stop"
		if len(turn.Calls) > 0 {
			finish = "tool_calls"
		}
		if err := Send(ctx, respCh, Response{
			Message:      core.NewAssistantMessage(turn.Text, turn.Calls...),
			FinishReason: finish,
		}); err != nil {
			errCh <- err
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

// splitKeepSpaces splits s into word chunks that concatenate back to s.
func splitKeepSpaces(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for len(s) > 0 {
		i := strings.IndexByte(s[1:], ' ')
		if i < 0 {
			out = append(out, s)
			break
		}
		out = append(out, s[:i+1])
		s = s[i+1:]
	}
	return out
}
