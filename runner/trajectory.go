package runner

import (
	"encoding/json"
	"time"

	"github.com/lucasXiaofan/med-deepresearch/core"
)

// maxRecordedOutput bounds the tool output kept per call in the trajectory.
const maxRecordedOutput = 2000

// Termination reasons.
const (
	ReasonModelComplete = "llm_complete"
	ReasonFinalResult   = "final_result"
	ReasonMaxTurns      = "max_turns"
	ReasonModelError    = "llm_error"
	ReasonProtocolError = "protocol_error"
)

// Entry kinds.
const (
	EntryTurn      = "turn"
	EntrySynthesis = "synthesis"
)

// ToolCallRecord captures one executed (or skipped) tool call.
type ToolCallRecord struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Args       map[string]any `json:"args"`
	Result     string         `json:"result"`
	IsError    bool           `json:"is_error,omitempty"`
	IsFinal    bool           `json:"is_final,omitempty"`
	Skipped    bool           `json:"skipped,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

// TurnRecord is one trajectory entry. Synthesis entries carry Kind
// EntrySynthesis and no turn number.
type TurnRecord struct {
	Kind           string           `json:"kind"`
	Turn           int              `json:"turn,omitempty"`
	Content        string           `json:"content"`
	ToolCalls      []ToolCallRecord `json:"tool_calls"`
	MarkerDetected bool             `json:"marker_detected"`
	Annotated      bool             `json:"annotated"`
	Annotation     string           `json:"annotation,omitempty"`
	Final          bool             `json:"final,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// Tokens accumulates provider reported token usage.
type Tokens struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Trajectory is the audit record of one run, written once when the run ends.
type Trajectory struct {
	RunID             string         `json:"run_id"`
	SessionID         string         `json:"session_id"`
	Model             string         `json:"model"`
	Input             string         `json:"input"`
	MaxTurns          int            `json:"max_turns"`
	Turns             []TurnRecord   `json:"turns"`
	Tokens            Tokens         `json:"tokens"`
	StartedAt         time.Time      `json:"started_at"`
	FinishedAt        time.Time      `json:"finished_at"`
	Outcome           core.Outcome   `json:"outcome"`
	TerminationReason string         `json:"termination_reason"`
	Output            string         `json:"output"`
	FinalResultData   map[string]any `json:"final_result_data,omitempty"`
	TotalTurns        int            `json:"total_turns"`
	Error             string         `json:"error,omitempty"`
}

func truncateOutput(s string) string { return truncateRunes(s, maxRecordedOutput) }

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func encodePayload(payload map[string]any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
