package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasXiaofan/med-deepresearch/core"
	"github.com/lucasXiaofan/med-deepresearch/logging"
	"github.com/lucasXiaofan/med-deepresearch/session"
)

func testToolContext(store core.SessionStore, fcID string) *core.ToolContext {
	return core.NewToolContext(context.Background(), core.ToolContextOptions{
		SessionID:      "sess-1",
		RunID:          "run-1",
		FunctionCallID: fcID,
		Store:          store,
		Logger:         logging.NoOpLogger{},
	})
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	result, err := sumTool.Call(testToolContext(nil, "fc1"), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []string{"a"},
	}
	called := false
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		called = true
		return 0, nil
	})

	_, err := tTool.Call(testToolContext(nil, "fc2"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.False(t, called)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := execTool.Call(testToolContext(nil, "fc3"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	execTool := NewFunctionTool("lookup", "Looks up", map[string]any{}, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, NewToolError("lookup", "no such document", CodeNotFound)
	})

	_, err := execTool.Call(testToolContext(nil, "fc4"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeNotFound, toolErr.Code)
}

// -------------------- Built-in Tools --------------------

func TestThinkTool(t *testing.T) {
	think := NewThinkTool()
	assert.Equal(t, "think", think.Name())

	res, err := think.Call(testToolContext(nil, "fc"), map[string]any{"thought": "check the imaging first"})
	require.NoError(t, err)
	assert.Equal(t, "Thought recorded: check the imaging first", res)
}

func TestNoteTool_AppendsNoteRecord(t *testing.T) {
	store := session.NewInMemoryStore()
	note := NewNoteTool()

	res, err := note.Call(testToolContext(store, "fc"), map[string]any{"data": `{"finding":"lesion in T2"}`})
	require.NoError(t, err)
	assert.Equal(t, `Stored in session: {"finding":"lesion in T2"}`, res)

	records, err := store.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, core.RecordNote, records[0].Kind)

	var data map[string]string
	require.NoError(t, records[0].Decode(&data))
	assert.Equal(t, "lesion in T2", data["finding"])
}

func TestNoteTool_RejectsNonObject(t *testing.T) {
	store := session.NewInMemoryStore()
	note := NewNoteTool()

	for _, bad := range []string{`[1,2]`, `not json`, `null`} {
		_, err := note.Call(testToolContext(store, "fc"), map[string]any{"data": bad})
		var toolErr *ToolError
		require.ErrorAs(t, err, &toolErr, bad)
		assert.Equal(t, CodeValidation, toolErr.Code)
	}

	records, _ := store.Load(context.Background(), "sess-1")
	assert.Empty(t, records)
}

func TestNoteTool_NoStore(t *testing.T) {
	_, err := NewNoteTool().Call(testToolContext(nil, "fc"), map[string]any{"data": `{}`})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")

	plain := &ToolError{Tool: "demo", Message: "x"}
	assert.Equal(t, "tool error in demo: x", plain.Error())
}

// -------------------- FormatResult --------------------

type stringer struct{}

func (stringer) String() string { return "stringer" }

func TestFormatResult(t *testing.T) {
	assert.Equal(t, "", FormatResult(nil))
	assert.Equal(t, "plain", FormatResult("plain"))
	assert.Equal(t, "raw", FormatResult([]byte("raw")))
	assert.Equal(t, "stringer", FormatResult(stringer{}))
	assert.JSONEq(t, `{"a":1}`, FormatResult(map[string]int{"a": 1}))
	assert.Equal(t, "5", FormatResult(5.0))
}
