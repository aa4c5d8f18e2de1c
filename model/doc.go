// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with language models inside agentloop.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, core.ToolCallRequest)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel, ScriptedModel)
//
// Providers (OpenAI, Anthropic, Gemini) implement the Model interface from this
// package so the agent loop remains decoupled from vendor SDKs. Providers
// without native token streaming deliver the whole text in the final response.
package model
