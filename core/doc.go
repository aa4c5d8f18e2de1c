// Package core provides the foundational domain types shared by every layer of
// agentloop:
//
//   - Messages, tool call requests and tool results
//   - Conversation (append-only history with tool call / result pairing)
//   - Thread (a conversation persisted across loop executions)
//   - StreamEvent (the closed set of externally observable progress events)
//   - ModelResponse (the Answer | ToolRequest variant derived from a model turn)
//   - Sentinel errors and the iteration limiter
//
// The package has no dependencies on model providers, tools or transports so
// that those layers can evolve independently.
package core
