package fanout

import (
	"time"

	"github.com/lucasXiaofan/med-deepresearch/core"
)

// Entry statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// SubTask is one unit of delegated work. ID is also the session ID of the
// sub-task's runner: <batch>_sub<ordinal>.
type SubTask struct {
	ID          string `json:"session_id"`
	Ordinal     int    `json:"task_id"`
	Instruction string `json:"task"`
}

// Entry is the outcome of one sub-task.
type Entry struct {
	TaskID    int            `json:"task_id"`
	Task      string         `json:"task"`
	SessionID string         `json:"session_id"`
	RunID     string         `json:"run_id,omitempty"`
	Status    string         `json:"status"`
	Outcome   core.Outcome   `json:"outcome"`
	Report    string         `json:"report,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Error     string         `json:"error,omitempty"`
	Turns     int            `json:"turns"`
}

// Report aggregates a batch. Entries are ordered by TaskID.
type Report struct {
	BatchID    string    `json:"batch_id"`
	Entries    []Entry   `json:"results"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Successful counts entries whose run produced an answer.
func (r *Report) Successful() int {
	n := 0
	for _, e := range r.Entries {
		if e.Status == StatusSuccess {
			n++
		}
	}
	return n
}

// Failed counts failed entries.
func (r *Report) Failed() int { return len(r.Entries) - r.Successful() }

// Summary is the JSON shape returned to the model by the spawn tool.
type Summary struct {
	Status     string  `json:"status"`
	NumAgents  int     `json:"num_agents"`
	Successful int     `json:"successful"`
	Failed     int     `json:"failed"`
	Results    []Entry `json:"results"`
}

// Summary condenses the report.
func (r *Report) Summary() Summary {
	return Summary{
		Status:     "completed",
		NumAgents:  len(r.Entries),
		Successful: r.Successful(),
		Failed:     r.Failed(),
		Results:    r.Entries,
	}
}

type spawnRecord struct {
	BatchID   string    `json:"batch_id"`
	NumAgents int       `json:"num_agents"`
	Tasks     []SubTask `json:"tasks"`
}

type resultsRecord struct {
	BatchID    string  `json:"batch_id"`
	NumAgents  int     `json:"num_agents"`
	Successful int     `json:"successful"`
	Failed     int     `json:"failed"`
	Results    []Entry `json:"results"`
}
