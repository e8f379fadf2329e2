package fanout

import (
	"errors"
	"fmt"

	"github.com/lucasXiaofan/med-deepresearch/core"
	"github.com/lucasXiaofan/med-deepresearch/internal/util"
	"github.com/lucasXiaofan/med-deepresearch/tool"
)

// ToolName is the name the spawn tool is offered under.
const ToolName = "spawn_subagents"

// Tool exposes a Coordinator to a top-level runner as "spawn_subagents". The
// calling session becomes the batch ID. Tool is a tool.Spawner and therefore
// cannot be registered in a tool.LeafRegistry.
type Tool struct {
	coord *Coordinator
}

var _ tool.Spawner = (*Tool)(nil)

// NewTool wraps a Coordinator.
func NewTool(coord *Coordinator) *Tool { return &Tool{coord: coord} }

// Name implements tool.Tool.
func (t *Tool) Name() string { return ToolName }

// Description implements tool.Tool.
func (t *Tool) Description() string {
	return fmt.Sprintf("Spawn up to %d research sub-agents in parallel, one per task. "+
		"Each sub-agent researches its task independently and returns a report. "+
		"Use for independent lines of inquiry.", t.coord.MaxSubTasks())
}

// Parameters implements tool.Tool.
func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tasks": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"maxItems":    t.coord.MaxSubTasks(),
				"description": "One self-contained research instruction per sub-agent",
			},
		},
		"required": []string{"tasks"},
	}
}

// SpawnsSubtasks implements tool.Spawner.
func (t *Tool) SpawnsSubtasks() {}

// Call implements tool.Tool. It returns the batch Summary.
func (t *Tool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	if err := util.ValidateParameters(args, t.Parameters()); err != nil {
		return nil, &tool.ToolError{Tool: ToolName, Message: err.Error(), Code: tool.CodeValidation, Details: err}
	}

	var tasks []string
	switch raw := args["tasks"].(type) {
	case []any:
		for _, v := range raw {
			s, _ := v.(string)
			tasks = append(tasks, s)
		}
	case []string:
		tasks = raw
	}

	batchID := toolCtx.SessionID()
	report, err := t.coord.Dispatch(toolCtx.Context(), batchID, tasks)
	if err != nil {
		code := tool.CodeExecution
		if errors.Is(err, ErrTooManySubTasks) || errors.Is(err, ErrNoSubTasks) || errors.Is(err, ErrEmptyInstruction) {
			code = tool.CodeValidation
		}
		if report == nil {
			return nil, tool.NewToolError(ToolName, err.Error(), code)
		}
		toolCtx.Logger().Warn("fanout.tool.record_failed", "error", err.Error())
	}
	return report.Summary(), nil
}
