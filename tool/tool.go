// Package tool implements the function calling surface exposed to research
// runs: the Tool contract, schema validated function tools, registries and
// the built-in bash, think and note tools.
package tool

import (
	"errors"
	"fmt"

	"github.com/lucasXiaofan/med-deepresearch/core"
	"github.com/lucasXiaofan/med-deepresearch/internal/util"
)

// Tool is a capability a model may invoke by name during a run.
//
// Implementations should be safe for concurrent use: one tool value is shared
// by every sub-task of a fan-out batch.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description is shown to the model to decide when to use the tool.
	Description() string

	// Parameters returns the JSON schema of the accepted arguments.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments. The returned value is
	// rendered to text with FormatResult before it is handed to the model.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// Spawner marks a tool that starts further runs (sub-agents). Spawners are
// never admitted into a LeafRegistry, so sub-task runs cannot fan out again.
type Spawner interface {
	Tool
	SpawnsSubtasks()
}

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ErrSpawnerNotAllowed is returned when a Spawner is added to a LeafRegistry.
var ErrSpawnerNotAllowed = errors.New("spawner tools are not allowed in a leaf registry")

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
