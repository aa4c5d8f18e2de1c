package server

import (
	"github.com/hupe1980/agentloop/core"
)

// Event is the JSON object written for every stream event, one per NDJSON
// line or websocket text frame.
type Event struct {
	Type     string         `json:"type"`
	Content  string         `json:"content,omitempty"`
	ThreadID string         `json:"thread_id"`
	UserID   string         `json:"user_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewEvent converts a stream event to its wire form.
func NewEvent(ev core.StreamEvent, threadID, userID string) Event {
	out := Event{
		Type:     core.EventType(ev),
		ThreadID: threadID,
		UserID:   userID,
	}

	switch e := ev.(type) {
	case core.TokenEvent:
		out.Content = e.Text
	case core.ToolStartEvent:
		out.Metadata = map[string]any{
			"call_id":   e.CallID,
			"name":      e.Name,
			"arguments": e.Arguments,
		}
	case core.ToolEndEvent:
		out.Metadata = map[string]any{
			"call_id":  e.CallID,
			"name":     e.Name,
			"output":   e.Result.Text(),
			"is_error": e.Result.IsError,
		}
	case core.MetadataEvent:
		out.Metadata = e.Values
	case core.ErrorEvent:
		out.Content = e.Message
	}

	return out
}

// chatRequest is the body of POST /chat/stream and the websocket frame format.
type chatRequest struct {
	Input         string `json:"input"`
	ThreadID      string `json:"thread_id"`
	ThreadIDCamel string `json:"threadId"`
	UserID        string `json:"user_id"`
}

func (r chatRequest) threadID() string {
	if r.ThreadID != "" {
		return r.ThreadID
	}
	return r.ThreadIDCamel
}

type errorResponse struct {
	Error string `json:"error"`
}
