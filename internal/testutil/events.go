package testutil

import "github.com/hupe1980/agentloop/core"

// EventTypes maps events to their wire type tags.
func EventTypes(events []core.StreamEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, core.EventType(ev))
	}
	return out
}

// CompactTypes is EventTypes with consecutive token events collapsed into one
// entry, so assertions do not depend on chunking.
func CompactTypes(events []core.StreamEvent) []string {
	var out []string
	for _, typ := range EventTypes(events) {
		if typ == core.EventTypeToken && len(out) > 0 && out[len(out)-1] == typ {
			continue
		}
		out = append(out, typ)
	}
	return out
}
