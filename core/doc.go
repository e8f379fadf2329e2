// Package core provides the foundational domain types and interfaces shared by
// the runner, the fan-out coordinator and the model adapters:
//
//   - Content / Part (role-tagged conversation messages)
//   - FunctionCall / FunctionResponse (tool invocation protocol)
//   - Outcome (terminal state of a run)
//   - SessionStore / Record (durable append-only session log)
//   - ToolContext (scoped surface handed to tool implementations)
//   - TurnBudget (bounded turn counter)
//
// The package keeps implementation concerns (persistence, provider SDKs, the
// turn loop) out of scope, exposing small interfaces so storage backends and
// providers can be swapped without touching callers.
package core
