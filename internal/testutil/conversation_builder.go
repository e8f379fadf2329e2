package testutil

import (
	"encoding/json"

	"github.com/lucasXiaofan/med-deepresearch/core"
)

// ConversationBuilder provides a fluent helper for constructing conversations.
//
//	conv := NewConversationBuilder().
//	  System("You are a researcher.").
//	  User("Search for X").
//	  Calls(Call("c1", "query", map[string]any{"q": "X"})).
//	  Result("c1", "query", "no marker here").
//	  Build()
type ConversationBuilder struct {
	conv core.Conversation
}

// NewConversationBuilder creates an empty builder.
func NewConversationBuilder() *ConversationBuilder { return &ConversationBuilder{} }

// System appends a system message (chainable).
func (b *ConversationBuilder) System(text string) *ConversationBuilder {
	b.conv.Append(core.NewTextContent(core.RoleSystem, text))
	return b
}

// User appends a user message (chainable).
func (b *ConversationBuilder) User(text string) *ConversationBuilder {
	b.conv.Append(core.NewTextContent(core.RoleUser, text))
	return b
}

// Assistant appends an assistant text message (chainable).
func (b *ConversationBuilder) Assistant(text string) *ConversationBuilder {
	b.conv.Append(core.NewTextContent(core.RoleAssistant, text))
	return b
}

// Calls appends an assistant message requesting the given calls (chainable).
func (b *ConversationBuilder) Calls(calls ...core.FunctionCall) *ConversationBuilder {
	parts := make([]core.Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: c})
	}
	b.conv.Append(core.Content{Role: core.RoleAssistant, Parts: parts})
	return b
}

// Result appends a tool result answering the call with id (chainable).
func (b *ConversationBuilder) Result(id, name, text string) *ConversationBuilder {
	b.conv.Append(core.NewToolResultContent(id, name, text))
	return b
}

// Build returns a copy of the assembled conversation.
func (b *ConversationBuilder) Build() core.Conversation { return b.conv.Clone() }

// Call builds a function call with JSON encoded arguments.
func Call(id, name string, args map[string]any) core.FunctionCall {
	raw := "{}"
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			panic(err)
		}
		raw = string(data)
	}
	return core.FunctionCall{ID: id, Name: name, Arguments: raw}
}
