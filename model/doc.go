// Package model defines the provider-agnostic abstractions for talking to a
// completion service and lightweight in-memory models for tests.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, core.FunctionCall)
//   - Support a "no tools offered" mode (empty Request.Tools) used for forced synthesis
//   - Facilitate deterministic mocking (ScriptedModel, Func)
//
// Providers (OpenAI-compatible endpoints, Anthropic) implement Model in
// sub-packages so the runner stays decoupled from vendor SDKs.
package model
