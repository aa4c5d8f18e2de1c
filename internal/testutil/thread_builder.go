package testutil

import (
	"testing"

	"github.com/hupe1980/agentloop/core"
)

// ThreadBuilder helps construct threads with fluent chaining for tests.
// Example:
//
//	th := NewThreadBuilder(t, "t1").User("hi").Assistant("hello").Build()
type ThreadBuilder struct {
	t    testing.TB
	id   string
	msgs []core.Message
}

// NewThreadBuilder creates a builder for a thread with the given id.
func NewThreadBuilder(t testing.TB, id string) *ThreadBuilder {
	return &ThreadBuilder{t: t, id: id}
}

// User appends a user message (chainable).
func (b *ThreadBuilder) User(text string) *ThreadBuilder {
	b.msgs = append(b.msgs, core.NewUserMessage(text))
	return b
}

// Assistant appends an assistant message with optional tool calls (chainable).
func (b *ThreadBuilder) Assistant(text string, calls ...core.ToolCallRequest) *ThreadBuilder {
	b.msgs = append(b.msgs, core.NewAssistantMessage(text, calls...))
	return b
}

// ToolResult appends a tool message (chainable).
func (b *ThreadBuilder) ToolResult(callID, name string, content any) *ThreadBuilder {
	b.msgs = append(b.msgs, core.NewToolMessage(core.ToolResult{CallID: callID, Name: name, Content: content}))
	return b
}

// ToolRound appends a complete search round trip: user question, one tool
// call, its result and the final answer (chainable).
func (b *ThreadBuilder) ToolRound(question, query, output, answer string) *ThreadBuilder {
	callID := "call_" + core.NewID()[:8]
	return b.User(question).
		Assistant("", core.ToolCallRequest{ID: callID, Name: "search", Arguments: map[string]any{"query": query}}).
		ToolResult(callID, "search", output).
		Assistant(answer)
}

// Conversation returns the built conversation, failing the test when the
// messages violate the conversation invariants.
func (b *ThreadBuilder) Conversation() *core.Conversation {
	b.t.Helper()
	conv, err := core.NewConversation(b.msgs...)
	if err != nil {
		b.t.Fatalf("invalid conversation: %v", err)
	}
	return conv
}

// Build returns a *core.Thread holding the built conversation.
func (b *ThreadBuilder) Build() *core.Thread {
	b.t.Helper()
	th := core.NewThread(b.id)
	th.Conversation = b.Conversation()
	return th
}
