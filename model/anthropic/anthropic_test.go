package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasXiaofan/med-deepresearch/core"
	"github.com/lucasXiaofan/med-deepresearch/model"
)

func TestGenerate_ToolUseAndResults(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude",
			"stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "Looking it up."},
				{"type": "tool_use", "id": "toolu_1", "name": "query", "input": {"q": "X"}}
			],
			"usage": {"input_tokens": 5, "output_tokens": 7}
		}`))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
	})

	conv := []core.Content{
		core.NewTextContent(core.RoleSystem, "You are a researcher."),
		core.NewTextContent(core.RoleUser, "Search for X"),
		{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "toolu_0", Name: "query", Arguments: `{"q":"Y"}`}}}},
		core.NewToolResultContent("toolu_0", "query", "nothing"),
	}
	tools := []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
		Name:       "query",
		Parameters: map[string]any{"type": "object", "properties": map[string]any{"q": map[string]any{"type": "string"}}, "required": []any{"q"}},
	}}}

	resp, err := model.Complete(context.Background(), m, model.Request{Contents: conv, Tools: tools})
	require.NoError(t, err)
	assert.Equal(t, "Looking it up.", resp.Content.Text())
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "toolu_1", calls[0].ID)
	assert.JSONEq(t, `{"q":"X"}`, calls[0].Arguments)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
	assert.Equal(t, "tool_use", resp.FinishReason)

	msgs, _ := captured["messages"].([]any)
	require.Len(t, msgs, 3)
	last, _ := msgs[2].(map[string]any)
	assert.Equal(t, "user", last["role"])
	assert.NotNil(t, captured["system"])
	assert.NotNil(t, captured["tools"])
}

func TestBuildMessages_MergesConsecutiveToolResults(t *testing.T) {
	conv := []core.Content{
		core.NewTextContent(core.RoleUser, "hi"),
		{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "a", Name: "t"}},
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "b", Name: "t"}},
		}},
		core.NewToolResultContent("a", "t", "1"),
		core.NewToolResultContent("b", "t", "2"),
	}
	msgs := buildMessages(conv, false)
	require.Len(t, msgs, 3)
	assert.Len(t, msgs[2].Content, 2)
}

func TestGenerate_SynthesisRequestShape(t *testing.T) {
	conv := []core.Content{
		core.NewTextContent(core.RoleSystem, "sys"),
		core.NewTextContent(core.RoleUser, "Search for X"),
		{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "toolu_0", Name: "query", Arguments: `{"q":"Y"}`}}}},
		core.NewToolResultContent("toolu_0", "query", "nothing"),
		core.NewTextContent(core.RoleUser, "Summarize what you found."),
	}
	tools := []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
		Name:       "query",
		Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
	}}}

	tests := []struct {
		name           string
		req            model.Request
		wantTools      bool
		wantToolChoice string
		wantLastTypes  []string
	}{
		{
			name:           "tools declared but disabled",
			req:            model.Request{Contents: conv, Tools: tools, DisableTools: true},
			wantTools:      true,
			wantToolChoice: "none",
			wantLastTypes:  []string{"tool_result", "text"},
		},
		{
			name:          "no tool definitions flattens the history",
			req:           model.Request{Contents: conv},
			wantLastTypes: []string{"text", "text"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				raw, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(raw, &captured)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{
					"id": "msg_2", "type": "message", "role": "assistant", "model": "claude",
					"stop_reason": "end_turn",
					"content": [{"type": "text", "text": "Final summary."}],
					"usage": {"input_tokens": 5, "output_tokens": 2}
				}`))
			}))
			defer srv.Close()

			m := NewModel(func(o *Options) {
				o.APIKey = "test"
				o.BaseURL = srv.URL + "/"
			})
			resp, err := model.Complete(context.Background(), m, tt.req)
			require.NoError(t, err)
			assert.Equal(t, "Final summary.", resp.Content.Text())

			if tt.wantTools {
				assert.NotNil(t, captured["tools"])
			} else {
				assert.Nil(t, captured["tools"])
			}
			if tt.wantToolChoice != "" {
				choice, _ := captured["tool_choice"].(map[string]any)
				assert.Equal(t, tt.wantToolChoice, choice["type"])
			} else {
				assert.Nil(t, captured["tool_choice"])
			}

			msgs, _ := captured["messages"].([]any)
			require.Len(t, msgs, 3)
			roles := make([]string, len(msgs))
			for i, raw := range msgs {
				msg, _ := raw.(map[string]any)
				roles[i], _ = msg["role"].(string)
			}
			assert.Equal(t, []string{"user", "assistant", "user"}, roles)

			last, _ := msgs[2].(map[string]any)
			blocks, _ := last["content"].([]any)
			types := make([]string, len(blocks))
			for i, raw := range blocks {
				block, _ := raw.(map[string]any)
				types[i], _ = block["type"].(string)
			}
			assert.Equal(t, tt.wantLastTypes, types)
		})
	}
}

func TestBuildMessages_FlattensToolHistory(t *testing.T) {
	conv := []core.Content{
		core.NewTextContent(core.RoleUser, "hi"),
		{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "a", Name: "bash", Arguments: `{"command":"ls"}`}},
		}},
		core.NewToolResultContent("a", "bash", "notes.md"),
	}
	msgs := buildMessages(conv, true)
	require.Len(t, msgs, 3)
	require.Len(t, msgs[1].Content, 1)
	require.NotNil(t, msgs[1].Content[0].OfText)
	assert.Equal(t, `[called bash {"command":"ls"}]`, msgs[1].Content[0].OfText.Text)
	require.Len(t, msgs[2].Content, 1)
	require.NotNil(t, msgs[2].Content[0].OfText)
	assert.Equal(t, "[result of bash]\nnotes.md", msgs[2].Content[0].OfText.Text)
}

func TestBuildTools_RequiredFromDecodedSchema(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{Function: model.FunctionDefinition{
		Name:       "bash",
		Parameters: map[string]any{"properties": map[string]any{}, "required": []any{"command"}},
	}}})
	require.Len(t, tools, 1)
	assert.Equal(t, []string{"command"}, tools[0].OfTool.InputSchema.Required)
}
