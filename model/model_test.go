package model

import (
	"context"
	"errors"
	"testing"

	"github.com/lucasXiaofan/med-deepresearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete_ScriptedSteps(t *testing.T) {
	boom := errors.New("rate limited")
	m := NewScriptedModel(
		Step{Response: TextResponse("hello")},
		Step{Err: boom},
	)
	ctx := context.Background()

	resp, err := Complete(ctx, m, Request{Contents: []core.Content{core.NewTextContent(core.RoleUser, "hi")}, Stream: true})
	require.NoError(t, err)
	assert.False(t, resp.Partial)
	assert.Equal(t, "hello", resp.Content.Text())
	assert.Equal(t, core.RoleAssistant, resp.Content.Role)

	_, err = Complete(ctx, m, Request{})
	assert.ErrorIs(t, err, boom)

	_, err = Complete(ctx, m, Request{})
	assert.ErrorContains(t, err, "exhausted")
	assert.Equal(t, 3, m.Calls())
}

func TestScriptedModel_Fallback(t *testing.T) {
	m := NewScriptedModel()
	m.Fallback = func(Request) Step {
		return Step{Response: ToolCallResponse(core.FunctionCall{ID: "1", Name: "query"})}
	}
	resp, err := Complete(context.Background(), m, Request{})
	require.NoError(t, err)
	require.Len(t, resp.Content.FunctionCalls(), 1)
	assert.Equal(t, "query", resp.Content.FunctionCalls()[0].Name)
}

func TestFunc(t *testing.T) {
	f := Func(func(_ context.Context, req Request) (Response, error) {
		if len(req.Tools) == 0 {
			return TextResponse("no tools"), nil
		}
		return Response{}, errors.New("unexpected tools")
	})
	resp, err := Complete(context.Background(), f, Request{})
	require.NoError(t, err)
	assert.Equal(t, "no tools", resp.Content.Text())
}

func TestComplete_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	block := Func(func(ctx context.Context, _ Request) (Response, error) {
		<-ctx.Done()
		return Response{}, ctx.Err()
	})
	_, err := Complete(ctx, block, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequest_ToolsOffered(t *testing.T) {
	defs := []ToolDefinition{{Type: "function", Function: FunctionDefinition{Name: "bash"}}}
	tests := []struct {
		name string
		req  Request
		want bool
	}{
		{name: "no tools", req: Request{}},
		{name: "tools", req: Request{Tools: defs}, want: true},
		{name: "tools disabled", req: Request{Tools: defs, DisableTools: true}},
		{name: "disabled without tools", req: Request{DisableTools: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.ToolsOffered())
		})
	}
}
