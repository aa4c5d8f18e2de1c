package core

import (
	"fmt"
	"strings"
)

// ModelResponse is the interpreted outcome of one model turn: either a final
// Answer or a ToolRequest. Call sites switch on the concrete type instead of
// probing optional fields.
type ModelResponse interface{ isModelResponse() }

// Answer is a terminal, tool-call-free response. Text may be empty.
type Answer struct {
	Text string
}

func (Answer) isModelResponse() {}

// ToolRequest asks for one or more tool invocations. Text holds any prose the
// model produced alongside the calls.
type ToolRequest struct {
	Text  string
	Calls []ToolCallRequest
}

func (ToolRequest) isModelResponse() {}

// Classify interprets an assistant message. A message carries a ToolRequest if
// and only if it has at least one tool call; every call needs a non-empty id
// and name, and ids must be unique. Anything else, including empty or
// whitespace-only text, is an Answer.
func Classify(msg Message) (ModelResponse, error) {
	if msg.Role != RoleAssistant {
		return nil, fmt.Errorf("%w: unexpected role %q", ErrMalformedResponse, msg.Role)
	}
	if !msg.HasToolCalls() {
		return Answer{Text: msg.Content}, nil
	}

	seen := make(map[string]struct{}, len(msg.ToolCalls))
	for i, call := range msg.ToolCalls {
		if strings.TrimSpace(call.Name) == "" {
			return nil, fmt.Errorf("%w: tool call %d has no name", ErrMalformedResponse, i)
		}
		if call.ID == "" {
			return nil, fmt.Errorf("%w: tool call %q has no id", ErrMalformedResponse, call.Name)
		}
		if _, dup := seen[call.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate tool call id %q", ErrMalformedResponse, call.ID)
		}
		seen[call.ID] = struct{}{}
	}

	return ToolRequest{Text: msg.Content, Calls: msg.Clone().ToolCalls}, nil
}
