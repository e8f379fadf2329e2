package tool

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasXiaofan/med-deepresearch/core"
	"github.com/lucasXiaofan/med-deepresearch/logging"
)

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func TestBashTool(t *testing.T) {
	requireBash(t)
	dir := t.TempDir()
	bash := NewBashTool(func(o *BashOptions) {
		o.WorkDir = dir
		o.SessionDir = "/tmp/sessions"
	})

	tests := []struct {
		name    string
		command string
		want    string
	}{
		{"stdout", "echo hello", "hello"},
		{"no output", "true", "Command executed successfully (no output)"},
		{"exit code with stderr", "echo bad >&2; exit 3", "Error (exit 3): bad"},
		{"exit code falls back to stdout", "echo partial; exit 1", "Error (exit 1): partial"},
		{"work dir", "pwd", dir},
		{"session env", `echo "$AGENT_SESSION_ID $AGENT_SESSION_DIR"`, "sess-1 /tmp/sessions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := bash.Call(testToolContext(nil, "fc"), map[string]any{"command": tt.command})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
		})
	}
}

func TestBashTool_Timeout(t *testing.T) {
	requireBash(t)
	bash := NewBashTool(func(o *BashOptions) { o.MaxTimeout = time.Second })

	start := time.Now()
	res, err := bash.Call(testToolContext(nil, "fc"), map[string]any{"command": "sleep 10", "timeout": 30.0})
	require.NoError(t, err)
	assert.Equal(t, "Error: Command timed out after 1 seconds", res)
	assert.Less(t, time.Since(start), 8*time.Second)
}

func TestBashTool_Validation(t *testing.T) {
	bash := NewBashTool()

	_, err := bash.Call(testToolContext(nil, "fc"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)

	_, err = bash.Call(testToolContext(nil, "fc"), map[string]any{"command": "  "})
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestBashTool_ParentCanceled(t *testing.T) {
	requireBash(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tc := core.NewToolContext(ctx, core.ToolContextOptions{SessionID: "s", FunctionCallID: "fc", Logger: logging.NoOpLogger{}})
	_, err := NewBashTool().Call(tc, map[string]any{"command": "echo hi"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
}
