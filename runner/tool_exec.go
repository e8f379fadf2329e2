package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/lucasXiaofan/med-deepresearch/core"
	"github.com/lucasXiaofan/med-deepresearch/logging"
	"github.com/lucasXiaofan/med-deepresearch/tool"
)

// callResult is the outcome of one tool call as seen by the model.
type callResult struct {
	text    string
	args    map[string]any
	isError bool
	dur     time.Duration
}

// executeCall runs one tool call. It never panics and never returns an error:
// unknown tools, undecodable arguments, tool errors and tool panics become
// "Error: ..." result text the model can react to.
func (r *Runner) executeCall(ctx context.Context, fc core.FunctionCall, run *runState) callResult {
	logger := run.logger
	start := time.Now()

	args, err := decodeArgs(fc.Arguments)
	if err != nil {
		logger.Warn("runner.tool.bad_arguments", "tool", fc.Name, "fc_id", fc.ID, "error", err.Error())
		return callResult{text: fmt.Sprintf("Error: invalid arguments for %s: %v", fc.Name, err), isError: true, dur: time.Since(start)}
	}

	impl, ok := r.lookup(fc.Name)
	if !ok {
		logger.Warn("runner.tool.not_found", "tool", fc.Name, "fc_id", fc.ID)
		return callResult{text: fmt.Sprintf("Error: tool %q not found", fc.Name), args: args, isError: true, dur: time.Since(start)}
	}

	toolCtx := core.NewToolContext(ctx, core.ToolContextOptions{
		SessionID:      run.sessionID,
		RunID:          run.runID,
		FunctionCallID: fc.ID,
		Store:          r.opts.Store,
		Logger:         logger,
	})

	var result any
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = &panicError{val: rec, stack: debug.Stack()}
				logger.Error("runner.tool.panic", "tool", fc.Name, "fc_id", fc.ID, "recover", fmt.Sprint(rec))
			}
		}()
		result, err = impl.Call(toolCtx, args)
	}()

	dur := time.Since(start)
	logging.LogToolCall(logger, fc.Name, dur, err)

	if err != nil {
		return callResult{text: "Error: " + err.Error(), args: args, isError: true, dur: dur}
	}
	return callResult{text: tool.FormatResult(result), args: args, dur: dur}
}

func (r *Runner) lookup(name string) (tool.Tool, bool) {
	if r.opts.Tools == nil {
		return nil, false
	}
	return r.opts.Tools.Lookup(name)
}

func decodeArgs(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

type panicError struct {
	val   any
	stack []byte
}

func (p *panicError) Error() string { return fmt.Sprintf("tool panicked: %v", p.val) }
