// Package session houses concrete implementations of core.SessionStore and
// helpers that render a session's history for the model.
//
// InMemoryStore serves tests and one-shot runs; FileStore keeps one JSON-lines
// file per session and is safe for concurrent writers across processes.
package session
