package tool

import "github.com/lucasXiaofan/med-deepresearch/core"

type thinkArgs struct {
	Thought string `json:"thought" description:"Your thought or reasoning step"`
}

// NewThinkTool returns the "think" tool, a scratchpad that echoes the thought.
func NewThinkTool() *FunctionTool {
	return NewFunctionToolFromStruct(
		"think",
		"Think through the problem step by step. Use this to plan your approach before taking actions.",
		thinkArgs{},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			thought, _ := args["thought"].(string)
			return "Thought recorded: " + thought, nil
		},
	)
}
