// Package anthropic provides a model wrapper for the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/lucasXiaofan/med-deepresearch/core"
	"github.com/lucasXiaofan/med-deepresearch/internal/util"
	"github.com/lucasXiaofan/med-deepresearch/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key, endpoint).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
	// RequestOptions are passed to the client verbatim.
	RequestOptions []option.RequestOption
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_7SonnetLatest,
		Temperature: 0.3,
		MaxTokens:   4096,
	}
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	clientOpts = append(clientOpts, opts.RequestOptions...)

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model. Streaming requests are served by the
// non-streaming endpoint and delivered as one final chunk.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		// Tool blocks require declared tools; without definitions the tool
		// history is sent as plain text.
		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    buildMessages(req.Contents, len(req.Tools) == 0),
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}
		if systemBlocks := extractSystem(req.Contents); len(systemBlocks) > 0 {
			params.System = systemBlocks
		}
		if len(req.Tools) > 0 {
			params.Tools = buildTools(req.Tools)
			if req.DisableTools {
				none := anthropic.NewToolChoiceNoneParam()
				params.ToolChoice = anthropic.ToolChoiceUnionParam{OfNone: &none}
			}
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		var parts []core.Part
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				if text := block.AsText().Text; text != "" {
					parts = append(parts, core.TextPart{Text: text})
				}
			case "tool_use":
				toolBlock := block.AsToolUse()
				args := "{}"
				if len(toolBlock.Input) > 0 {
					args = string(toolBlock.Input)
				}
				parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID:        toolBlock.ID,
					Name:      toolBlock.Name,
					Arguments: args,
				}})
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		out <- model.Response{
			ID:           resp.ID,
			Partial:      false,
			Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
			FinishReason: finishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		}
	}()

	return out, errCh
}

// buildMessages converts contents to Anthropic messages. Tool results are
// sent as tool_result blocks inside a user message, consecutive tool
// contents are merged into one message, and user text directly following
// tool results joins that message so user turns never repeat. With
// flattenTools, tool calls and results are rendered as text blocks.
func buildMessages(contents []core.Content, flattenTools bool) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) == 0 {
			return
		}
		messages = append(messages, anthropic.NewUserMessage(pendingResults...))
		pendingResults = nil
	}

	for _, c := range contents {
		switch c.Role {
		case core.RoleSystem:
			continue
		case core.RoleTool:
			for _, fr := range c.FunctionResponses() {
				if flattenTools {
					pendingResults = append(pendingResults, anthropic.NewTextBlock(fmt.Sprintf("[result of %s]\n%s", fr.Name, fr.Response)))
					continue
				}
				pendingResults = append(pendingResults, anthropic.NewToolResultBlock(fr.ID, fr.Response, fr.Error != ""))
			}
		case core.RoleAssistant:
			flushResults()
			if content := buildAssistantContent(c.Parts, flattenTools); len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		default:
			if text := c.Text(); text != "" {
				pendingResults = append(pendingResults, anthropic.NewTextBlock(text))
			}
			flushResults()
		}
	}
	flushResults()

	return messages
}

// extractSystem extracts system message blocks.
func extractSystem(contents []core.Content) []anthropic.TextBlockParam {
	var systemBlocks []anthropic.TextBlockParam
	for _, c := range contents {
		if c.Role != core.RoleSystem {
			continue
		}
		if text := c.Text(); text != "" {
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: text})
		}
	}
	return systemBlocks
}

// buildAssistantContent builds content for assistant messages.
func buildAssistantContent(parts []core.Part, flattenTools bool) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion
	for _, p := range parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				content = append(content, anthropic.NewTextBlock(part.Text))
			}
		case core.FunctionCallPart:
			if flattenTools {
				content = append(content, anthropic.NewTextBlock(fmt.Sprintf("[called %s %s]", part.FunctionCall.Name, part.FunctionCall.Arguments)))
				continue
			}
			var input any = map[string]any{}
			if part.FunctionCall.Arguments != "" {
				var decoded map[string]any
				if err := json.Unmarshal([]byte(part.FunctionCall.Arguments), &decoded); err == nil {
					input = decoded
				}
			}
			content = append(content, anthropic.NewToolUseBlock(part.FunctionCall.ID, input, part.FunctionCall.Name))
		}
	}
	return content
}

// buildTools converts tool definitions to Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if params := t.Function.Parameters; params != nil {
			if properties, ok := params["properties"]; ok {
				inputSchema.Properties = properties
			}
			inputSchema.Required = util.RequiredFields(params)
		}
		out[i] = anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Function.Name,
			Description: anthropic.String(t.Function.Description),
			InputSchema: inputSchema,
		}}
	}
	return out
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
