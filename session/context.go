package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lucasXiaofan/med-deepresearch/core"
)

const (
	contextNotes   = 10
	contextRuns    = 5
	summaryPreview = 200
)

type noteEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ContextPrompt renders the last notes and run summaries of a session into a
// block appended to a system prompt. It returns "" for a session without
// notes or runs.
func ContextPrompt(sessionID string, records []core.Record) string {
	var sections []string

	notes := core.FilterRecords(records, core.RecordNote)
	if len(notes) > contextNotes {
		notes = notes[len(notes)-contextNotes:]
	}
	if len(notes) > 0 {
		entries := make([]noteEntry, len(notes))
		for i, n := range notes {
			entries[i] = noteEntry{Timestamp: n.Timestamp, Data: n.Data}
		}
		text, err := json.MarshalIndent(entries, "", "  ")
		if err == nil {
			sections = append(sections, fmt.Sprintf("## Session Store (your saved notes)\n```json\n%s\n```", text))
		}
	}

	runs := core.FilterRecords(records, core.RecordRun)
	if len(runs) > contextRuns {
		runs = runs[len(runs)-contextRuns:]
	}
	if len(runs) > 0 {
		var b strings.Builder
		b.WriteString("## Previous Runs in This Session")
		for i, r := range runs {
			var sum core.RunSummary
			if err := r.Decode(&sum); err != nil {
				continue
			}
			fmt.Fprintf(&b, "\n%d. [%s] (%s) %s...", i+1, r.Timestamp.Format(time.RFC3339), sum.Outcome, truncate(sum.OutputSummary, summaryPreview))
		}
		sections = append(sections, b.String())
	}

	if len(sections) == 0 {
		return ""
	}
	return "---\n# SESSION: " + sessionID + "\n\n" + strings.Join(sections, "\n\n") + "\n---\n"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
