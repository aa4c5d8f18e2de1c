// Package agent contains the agent execution engine: a small state machine that
// alternates between a model.Model and a tool Invoker until the model produces a
// tool-call free answer.
//
// Execution Model:
//   - Run seeds the conversation with the caller's user message (AwaitingModel)
//   - Each model turn is classified as an Answer (Done) or a ToolRequest (AwaitingTools)
//   - Tool results are appended in request order before the next model turn
//   - Model failures, the iteration cap and sink errors end the run (Failed)
//
// Progress is reported to a Sink as core.StreamEvent values in production order.
// The engine never persists anything; committing the conversation is the
// caller's responsibility.
package agent
