package core

import "fmt"

// Conversation is the ordered message history owned by a single run.
type Conversation []Content

// Append adds contents to the end of the conversation.
func (c *Conversation) Append(contents ...Content) {
	*c = append(*c, contents...)
}

// Clone returns a shallow copy safe for independent appends.
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// AnnotateLastToolResult appends suffix to the response text of the most
// recently appended tool result. It reports false when the conversation does
// not end with a tool result.
func (c Conversation) AnnotateLastToolResult(suffix string) bool {
	if len(c) == 0 || c[len(c)-1].Role != RoleTool {
		return false
	}
	last := c[len(c)-1]
	for i := len(last.Parts) - 1; i >= 0; i-- {
		fr, ok := last.Parts[i].(FunctionResponsePart)
		if !ok {
			continue
		}
		fr.FunctionResponse.Response += suffix
		parts := make([]Part, len(last.Parts))
		copy(parts, last.Parts)
		parts[i] = fr
		c[len(c)-1] = Content{Role: last.Role, Parts: parts}
		return true
	}
	return false
}

// CheckPairing verifies that every function call requested by an assistant
// message is answered by exactly one tool result before the next
// non-tool message, and that no tool result lacks a request.
func (c Conversation) CheckPairing() error {
	pending := map[string]bool{}
	for i, content := range c {
		switch content.Role {
		case RoleTool:
			for _, fr := range content.FunctionResponses() {
				if !pending[fr.ID] {
					return &ProtocolError{Message: fmt.Sprintf("tool result %q at message %d has no pending request", fr.ID, i)}
				}
				delete(pending, fr.ID)
			}
		default:
			if len(pending) > 0 {
				return &ProtocolError{Message: fmt.Sprintf("%d tool request(s) unanswered before message %d", len(pending), i)}
			}
			if content.Role != RoleAssistant {
				continue
			}
			for _, fc := range content.FunctionCalls() {
				if fc.ID == "" {
					return &ProtocolError{Message: fmt.Sprintf("tool request %q at message %d has no id", fc.Name, i)}
				}
				if pending[fc.ID] {
					return &ProtocolError{Message: fmt.Sprintf("duplicate tool request id %q at message %d", fc.ID, i)}
				}
				pending[fc.ID] = true
			}
		}
	}
	if len(pending) > 0 {
		return &ProtocolError{Message: fmt.Sprintf("%d tool request(s) unanswered", len(pending))}
	}
	return nil
}
