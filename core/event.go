package core

import "maps"

// StreamEvent is one unit of externally observable loop progress. Concrete
// event types implement the unexported isStreamEvent marker, keeping the set
// closed: TokenEvent, ToolStartEvent, ToolEndEvent, MetadataEvent, ErrorEvent.
type StreamEvent interface{ isStreamEvent() }

// Wire type tags for stream events.
const (
	EventTypeToken     = "token"
	EventTypeToolStart = "tool_start"
	EventTypeToolEnd   = "tool_end"
	EventTypeMetadata  = "metadata"
	EventTypeError     = "error"
)

// TokenEvent carries an incremental chunk of assistant text.
type TokenEvent struct {
	Text string
}

func (TokenEvent) isStreamEvent() {}

// ToolStartEvent is emitted immediately before a tool call is dispatched.
type ToolStartEvent struct {
	CallID    string
	Name      string
	Arguments map[string]any
}

func (ToolStartEvent) isStreamEvent() {}

// ToolEndEvent is emitted after a tool call finished, successfully or not.
type ToolEndEvent struct {
	CallID string
	Name   string
	Result ToolResult
}

func (ToolEndEvent) isStreamEvent() {}

// MetadataEvent carries loop level key/value information (thread creation,
// request ids, completion status).
type MetadataEvent struct {
	Values map[string]any
}

func (MetadataEvent) isStreamEvent() {}

// ErrorEvent is the terminal failure marker. Nothing follows it.
type ErrorEvent struct {
	Message string
}

func (ErrorEvent) isStreamEvent() {}

// NewMetadataEvent builds a MetadataEvent from alternating key/value pairs.
// Non-string keys and a trailing key without a value are ignored.
func NewMetadataEvent(kv ...any) MetadataEvent {
	values := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		values[k] = kv[i+1]
	}
	return MetadataEvent{Values: values}
}

// Get returns a metadata value.
func (e MetadataEvent) Get(key string) (any, bool) {
	v, ok := e.Values[key]
	return v, ok
}

// With returns a copy with key set to value.
func (e MetadataEvent) With(key string, value any) MetadataEvent {
	values := maps.Clone(e.Values)
	if values == nil {
		values = map[string]any{}
	}
	values[key] = value
	return MetadataEvent{Values: values}
}

// EventType returns the wire type tag of ev.
func EventType(ev StreamEvent) string {
	switch ev.(type) {
	case TokenEvent:
		return EventTypeToken
	case ToolStartEvent:
		return EventTypeToolStart
	case ToolEndEvent:
		return EventTypeToolEnd
	case MetadataEvent:
		return EventTypeMetadata
	case ErrorEvent:
		return EventTypeError
	default:
		return ""
	}
}

// IsTerminal reports whether ev ends a stream: an ErrorEvent, or a
// MetadataEvent whose status is "completed".
func IsTerminal(ev StreamEvent) bool {
	switch e := ev.(type) {
	case ErrorEvent:
		return true
	case MetadataEvent:
		status, _ := e.Values["status"].(string)
		return status == StatusCompleted
	}
	return false
}

// StatusCompleted is the status value of the graceful completion marker.
const StatusCompleted = "completed"
