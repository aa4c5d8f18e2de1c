package core

import (
	"fmt"
	"slices"
	"sync"
)

// Conversation is an append-only, ordered message history.
//
// Invariant: every assistant message carrying tool call requests is followed by
// exactly one tool message per call id before any further user or assistant
// message is appended. Append rejects messages that would violate it.
//
// A Conversation is safe for concurrent use, although the loop that owns it is
// expected to be its only writer.
type Conversation struct {
	mu       sync.RWMutex
	messages []Message
	pending  []string
}

// NewConversation builds a conversation by appending msgs in order.
func NewConversation(msgs ...Message) (*Conversation, error) {
	c := &Conversation{}
	for i, m := range msgs {
		if err := c.Append(m); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
	}
	return c, nil
}

// Append validates and stores a copy of msg.
func (c *Conversation) Append(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Role {
	case RoleUser, RoleAssistant:
		if len(c.pending) > 0 {
			return fmt.Errorf("%w: %s message while tool calls %v are unanswered", ErrInvalidConversation, msg.Role, c.pending)
		}
		if msg.Role == RoleUser && msg.HasToolCalls() {
			return fmt.Errorf("%w: user message carries tool calls", ErrInvalidConversation)
		}
	case RoleTool:
		idx := slices.Index(c.pending, msg.ToolCallID)
		if msg.ToolCallID == "" || idx < 0 {
			return fmt.Errorf("%w: tool message answers unknown call %q", ErrInvalidConversation, msg.ToolCallID)
		}
		c.pending = slices.Delete(c.pending, idx, idx+1)
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidConversation, msg.Role)
	}

	for _, call := range msg.ToolCalls {
		c.pending = append(c.pending, call.ID)
	}
	c.messages = append(c.messages, msg.Clone())

	return nil
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Pending returns the call ids still awaiting a tool message.
func (c *Conversation) Pending() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.pending)
}

// Last returns the most recent message.
func (c *Conversation) Last() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1].Clone(), true
}

// Clone returns an independent deep copy.
func (c *Conversation) Clone() *Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Conversation{
		messages: make([]Message, len(c.messages)),
		pending:  slices.Clone(c.pending),
	}
	for i, m := range c.messages {
		clone.messages[i] = m.Clone()
	}
	return clone
}
