package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/lucasXiaofan/med-deepresearch/core"
	"github.com/lucasXiaofan/med-deepresearch/model"
	"github.com/lucasXiaofan/med-deepresearch/tool"
)

// ErrService is the error returned by FailingModel.
var ErrService = errors.New("service unavailable")

// LoopingModel returns a model that requests toolName on every call that
// offers tools, and answers with text when tools are not offered or disabled.
func LoopingModel(toolName string) *model.ScriptedModel {
	var n atomic.Int64
	m := model.NewScriptedModel()
	m.Fallback = func(req model.Request) model.Step {
		if !req.ToolsOffered() {
			return model.Step{Response: model.TextResponse("best effort conclusion")}
		}
		id := fmt.Sprintf("call_%d", n.Add(1))
		return model.Step{Response: model.ToolCallResponse(Call(id, toolName, map[string]any{"q": "again"}))}
	}
	return m
}

// FailingModel returns a model whose every call fails with ErrService.
func FailingModel() model.Model {
	return model.Func(func(context.Context, model.Request) (model.Response, error) {
		return model.Response{}, ErrService
	})
}

// InstructionModel routes each call by the first user message, which lets a
// single model serve concurrent sub-tasks. The route receives that message.
func InstructionModel(route func(instruction string, req model.Request) (model.Response, error)) model.Model {
	return model.Func(func(_ context.Context, req model.Request) (model.Response, error) {
		return route(FirstUserMessage(req.Contents), req)
	})
}

// FirstUserMessage returns the text of the first user message.
func FirstUserMessage(contents []core.Content) string {
	for _, c := range contents {
		if c.Role == core.RoleUser {
			return c.Text()
		}
	}
	return ""
}

// HasToolResult reports whether contents include any tool message.
func HasToolResult(contents []core.Content) bool {
	for _, c := range contents {
		if c.Role == core.RoleTool {
			return true
		}
	}
	return false
}

// StaticTool returns a tool that always answers with output and counts calls.
func StaticTool(name, output string, calls *atomic.Int64) *tool.FunctionTool {
	return tool.NewFunctionTool(name, "Returns a fixed answer", map[string]any{
		"type":       "object",
		"properties": map[string]any{"q": map[string]any{"type": "string"}},
	}, func(*core.ToolContext, map[string]any) (any, error) {
		if calls != nil {
			calls.Add(1)
		}
		return output, nil
	})
}

// MarkerOutput wraps a JSON body in final-result markers.
func MarkerOutput(body string) string {
	return strings.Join([]string{"<<<FINAL_RESULT>>>", body, "<<<END_FINAL_RESULT>>>"}, "\n")
}
