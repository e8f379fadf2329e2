package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasXiaofan/med-deepresearch/core"
	"github.com/lucasXiaofan/med-deepresearch/session"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "agent_config.yaml")
	body := "storage:\n  session_dir: " + filepath.Join(dir, "sessions") + "\nlogging:\n  format: json\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSessionsCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	out, err := execute(t, "sessions", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No saved sessions found.")

	store, err := session.NewFileStore(filepath.Join(dir, "sessions"))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, core.AppendJSON(ctx, store, "session_a", core.RecordNote, map[string]any{"k": "v"}))
	require.NoError(t, core.AppendJSON(ctx, store, "session_a", core.RecordRun, core.RunSummary{Outcome: core.OutcomeCompleted}))

	out, err = execute(t, "sessions", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "session_a")
	assert.Contains(t, out, "runs=1\tnotes=1")
}

func TestFlagsAreValidated(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir())

	_, err := execute(t, "sessions", "--config", cfgPath, "--max-turns", "5", "--subtask-turns", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limits.subtask_turns")

	_, err = execute(t, "sessions", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestRunRequiresAPIKey(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir())
	t.Setenv("OPENROUTER_API_KEY", "")

	_, err := execute(t, "run", "--config", cfgPath, "what is it?")
	require.EqualError(t, err, "missing API key: set OPENROUTER_API_KEY environment variable")
}

func TestFanoutRequiresTasks(t *testing.T) {
	_, err := execute(t, "fanout")
	require.Error(t, err)
}
