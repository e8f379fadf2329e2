package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasXiaofan/med-deepresearch/core"
)

type fakeSpawner struct{ *FunctionTool }

func (fakeSpawner) SpawnsSubtasks() {}

func newFakeSpawner() fakeSpawner {
	return fakeSpawner{NewFunctionTool("spawn", "Spawns", map[string]any{}, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, nil
	})}
}

func TestRegistry_OrderAndLookup(t *testing.T) {
	reg, err := NewRegistry(NewThinkTool(), NewBashTool(), NewNoteTool())
	require.NoError(t, err)

	assert.Equal(t, []string{"think", "bash", "session_store"}, reg.Names())
	assert.Equal(t, 3, reg.Len())

	tl, ok := reg.Lookup("bash")
	require.True(t, ok)
	assert.Equal(t, "bash", tl.Name())

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)

	defs := reg.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "think", defs[0].Function.Name)
	assert.NotEmpty(t, defs[1].Function.Parameters["properties"])
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(NewThinkTool(), NewThinkTool())
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewRegistry(nil)
	assert.Error(t, err)
}

func TestRegistry_NilSafe(t *testing.T) {
	var reg *Registry
	assert.Nil(t, reg.Definitions())
	assert.Equal(t, 0, reg.Len())
	_, ok := reg.Lookup("x")
	assert.False(t, ok)
}

func TestLeafRegistry_RejectsSpawner(t *testing.T) {
	_, err := NewLeafRegistry(NewThinkTool(), newFakeSpawner())
	assert.ErrorIs(t, err, ErrSpawnerNotAllowed)

	var _ Toolset = (*LeafRegistry)(nil)
}

func TestLeafRegistry_With(t *testing.T) {
	leaf, err := NewLeafRegistry(NewThinkTool())
	require.NoError(t, err)

	parent, err := leaf.With(newFakeSpawner())
	require.NoError(t, err)
	assert.Equal(t, []string{"think", "spawn"}, parent.Names())
	// The leaf itself is unchanged.
	assert.Equal(t, []string{"think"}, leaf.Names())
}
