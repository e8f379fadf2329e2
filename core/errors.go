package core

import "fmt"

// ProtocolError reports a malformed or unmatched tool invocation / result
// pairing. It is fatal to the current run.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Message)
}

// ServiceError reports a completion service failure (network, rate limit,
// malformed response). Runs do not retry on it.
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("completion service error [%s]: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("completion service error: %v", e.Err)
}

// Unwrap exposes the underlying provider error.
func (e *ServiceError) Unwrap() error { return e.Err }
