package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/lucasXiaofan/med-deepresearch/core"
)

// BashOptions configures the bash tool.
type BashOptions struct {
	// WorkDir is the directory commands run in. Empty means the process cwd.
	WorkDir string
	// Timeout applies when the model omits one. Defaults to 60s.
	Timeout time.Duration
	// MaxTimeout caps any requested timeout. Defaults to 300s.
	MaxTimeout time.Duration
	// SessionDir is exported to commands as AGENT_SESSION_DIR.
	SessionDir string
	// Shell is the interpreter invoked with -c. Defaults to "bash".
	Shell string
}

type bashArgs struct {
	Command string `json:"command" description:"The bash command to execute"`
	Timeout int    `json:"timeout,omitempty" description:"Maximum execution time in seconds (default 60)"`
}

// NewBashTool returns the "bash" tool. Commands receive AGENT_SESSION_ID and
// AGENT_SESSION_DIR so helper scripts can address the calling session.
// Command failures are reported as result text, not as errors.
func NewBashTool(optFns ...func(o *BashOptions)) *FunctionTool {
	opts := BashOptions{
		Timeout:    60 * time.Second,
		MaxTimeout: 300 * time.Second,
		Shell:      "bash",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return NewFunctionToolFromStruct(
		"bash",
		"Execute a bash command. Use for file operations, running scripts, or system commands.",
		bashArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			command, _ := args["command"].(string)
			if strings.TrimSpace(command) == "" {
				return nil, NewToolError("bash", "command must not be empty", CodeValidation)
			}

			timeout := opts.Timeout
			if secs, ok := args["timeout"].(float64); ok && secs > 0 {
				timeout = time.Duration(secs) * time.Second
			}
			if opts.MaxTimeout > 0 && timeout > opts.MaxTimeout {
				timeout = opts.MaxTimeout
			}

			return runBash(tc, opts, command, timeout)
		},
	)
}

func runBash(tc *core.ToolContext, opts BashOptions, command string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(tc.Context(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, opts.Shell, "-c", command)
	cmd.Dir = opts.WorkDir
	cmd.WaitDelay = time.Second

	env := os.Environ()
	if id := tc.SessionID(); id != "" {
		env = append(env, "AGENT_SESSION_ID="+id)
	}
	if opts.SessionDir != "" {
		env = append(env, "AGENT_SESSION_DIR="+opts.SessionDir)
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		tc.Logger().Warn("tool.bash.timeout", "timeout_s", int(timeout.Seconds()))
		return fmt.Sprintf("Error: Command timed out after %d seconds", int(timeout.Seconds())), nil
	}
	if parentErr := tc.Context().Err(); parentErr != nil {
		return "", parentErr
	}

	output := strings.TrimSpace(stdout.String())
	errText := strings.TrimSpace(stderr.String())

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if errText == "" {
				errText = output
			}
			return fmt.Sprintf("Error (exit %d): %s", exitErr.ExitCode(), errText), nil
		}
		return fmt.Sprintf("Error: %v", err), nil
	}

	if output == "" {
		return "Command executed successfully (no output)", nil
	}
	return output, nil
}
