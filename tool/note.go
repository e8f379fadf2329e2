package tool

import (
	"encoding/json"
	"fmt"

	"github.com/lucasXiaofan/med-deepresearch/core"
)

type noteArgs struct {
	Data string `json:"data" description:"A JSON object to store in the session"`
}

// NewNoteTool returns the "session_store" tool. It appends a JSON object as a
// note record to the calling session, where later runs see it through the
// session context prompt.
func NewNoteTool() *FunctionTool {
	return NewFunctionToolFromStruct(
		"session_store",
		"Store a JSON object in the current session for later reference.",
		noteArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			data, _ := args["data"].(string)

			var parsed map[string]any
			if err := json.Unmarshal([]byte(data), &parsed); err != nil {
				return nil, NewToolError("session_store", fmt.Sprintf("invalid JSON: %v", err), CodeValidation)
			}
			if parsed == nil {
				return nil, NewToolError("session_store", "data must be a JSON object", CodeValidation)
			}

			if err := tc.AppendRecord(core.RecordNote, parsed); err != nil {
				return nil, fmt.Errorf("store note: %w", err)
			}
			return "Stored in session: " + data, nil
		},
	)
}
