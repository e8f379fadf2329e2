package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lucasXiaofan/med-deepresearch/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by the runner.
//
// Tools lists the tools known to the conversation. DisableTools forbids
// calling any of them for this request while keeping their definitions
// available, which providers require when the history already holds tool
// calls and results. An empty Tools slice also means no tool calling.
type Request struct {
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	DisableTools bool             `json:"disable_tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// ToolsOffered reports whether the model may request tool calls.
func (r Request) ToolsOffered() bool { return len(r.Tools) > 0 && !r.DisableTools }

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the runner to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrNoFinalResponse is returned by Complete when the model closed its
// response stream without a final (non-partial) chunk.
var ErrNoFinalResponse = errors.New("model returned no final response")

// Complete drains a Generate call and returns the final response. Partial
// chunks are discarded. The first error received aborts the call.
func Complete(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		final    Response
		hasFinal bool
	)
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !resp.Partial {
				final = resp
				hasFinal = true
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}
	if !hasFinal {
		return Response{}, ErrNoFinalResponse
	}
	return final, nil
}

// Func adapts a plain function into a non-streaming Model. It is safe for
// concurrent use if the function is.
type Func func(ctx context.Context, req Request) (Response, error)

// Generate implements Model.
func (f Func) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		resp, err := f(ctx, req)
		if err != nil {
			errCh <- err
			return
		}
		resp.Partial = false
		respCh <- resp
	}()
	return respCh, errCh
}

// Info implements Model.
func (f Func) Info() Info { return Info{Name: "func", Provider: "mock", SupportsTools: true} }

// Step is one scripted model turn: either a response or an error.
type Step struct {
	Response Response
	Err      error
}

// ScriptedModel replays a fixed sequence of steps, one per Generate call,
// and records every request it receives. When the script runs out the
// Fallback (if set) is used, otherwise Generate fails.
type ScriptedModel struct {
	info     Info
	mu       sync.Mutex
	steps    []Step
	requests []Request
	Fallback func(req Request) Step
}

// NewScriptedModel constructs a ScriptedModel with basic tool support enabled.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: "scripted", Provider: "mock", SupportsTools: true},
		steps: steps,
	}
}

// Requests returns a copy of the recorded requests.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate invocations so far.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *ScriptedModel) next(req Request) (Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Contents is copied so later conversation appends do not alter the record.
	recorded := req
	recorded.Contents = append([]core.Content(nil), req.Contents...)
	m.requests = append(m.requests, recorded)
	if len(m.steps) > 0 {
		s := m.steps[0]
		m.steps = m.steps[1:]
		return s, nil
	}
	if m.Fallback != nil {
		return m.Fallback(req), nil
	}
	return Step{}, fmt.Errorf("scripted model exhausted after %d calls", len(m.requests)-1)
}

// Generate implements Model; emits optional streaming text chunks then the final response.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		step, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}
		if step.Err != nil {
			errCh <- step.Err
			return
		}
		if req.Stream {
			for _, r := range step.Response.Content.Text() {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.NewTextContent(core.RoleAssistant, string(r)),
				}:
				}
			}
		}
		final := step.Response
		final.Partial = false
		if final.Content.Role == "" {
			final.Content.Role = core.RoleAssistant
		}
		respCh <- final
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *ScriptedModel) Info() Info { return m.info }

// TextResponse builds a final assistant response carrying only text.
func TextResponse(text string) Response {
	return Response{Content: core.NewTextContent(core.RoleAssistant, text), FinishReason: "stop"}
}

// ToolCallResponse builds a final assistant response requesting the given calls.
func ToolCallResponse(calls ...core.FunctionCall) Response {
	parts := make([]core.Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: c})
	}
	return Response{Content: core.Content{Role: core.RoleAssistant, Parts: parts}, FinishReason: "tool_calls"}
}
