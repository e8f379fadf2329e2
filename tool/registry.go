package tool

import (
	"encoding/json"
	"fmt"

	"github.com/lucasXiaofan/med-deepresearch/model"
)

// Toolset is the read-only view of a set of tools a run may offer the model.
type Toolset interface {
	Lookup(name string) (Tool, bool)
	Definitions() []model.ToolDefinition
}

// Registry is an ordered, name-unique set of tools. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	tools  []Tool
	byName map[string]Tool
}

// NewRegistry builds a registry. Tool names must be non-empty and unique.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("nil tool")
		}
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tool has empty name")
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}
		r.byName[name] = t
		r.tools = append(r.tools, t)
	}
	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.byName[name]
	return t, ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	if r == nil {
		return nil
	}
	return append([]Tool(nil), r.tools...)
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name()
	}
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tools)
}

// Definitions converts the registered tools into model tool definitions.
func (r *Registry) Definitions() []model.ToolDefinition {
	if r == nil {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// LeafRegistry is a Registry that holds no Spawner. Sub-task runs are built
// from a LeafRegistry only, so a sub-task can never fan out further.
type LeafRegistry struct {
	*Registry
}

// NewLeafRegistry builds a leaf registry, rejecting any Spawner with
// ErrSpawnerNotAllowed.
func NewLeafRegistry(tools ...Tool) (*LeafRegistry, error) {
	for _, t := range tools {
		if _, ok := t.(Spawner); ok {
			return nil, fmt.Errorf("%w: %s", ErrSpawnerNotAllowed, t.Name())
		}
	}
	reg, err := NewRegistry(tools...)
	if err != nil {
		return nil, err
	}
	return &LeafRegistry{Registry: reg}, nil
}

// With returns a new (non-leaf) registry holding the leaf tools followed by extra.
func (l *LeafRegistry) With(extra ...Tool) (*Registry, error) {
	var base []Tool
	if l != nil {
		base = l.Tools()
	}
	return NewRegistry(append(base, extra...)...)
}

// FormatResult renders a tool return value as the text handed to the model.
// Strings pass through, nil becomes an empty string, everything else is JSON.
func FormatResult(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case []byte:
		return string(r)
	case fmt.Stringer:
		return r.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
