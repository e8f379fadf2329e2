// Package testutil contains helper builders used across tests to construct
// conversations, scripted models and stub tools with little boilerplate. It
// is not intended for production usage.
package testutil
