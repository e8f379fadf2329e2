package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Record kinds written by the runner, the coordinator and the built-in tools.
const (
	RecordTrajectory      = "trajectory"
	RecordRun             = "run"
	RecordNote            = "note"
	RecordSubagentSpawn   = "subagent_spawn"
	RecordSubagentResults = "subagent_results"
)

// Record is one committed entry of a session log. Records are append-only;
// nothing rewrites or deletes a committed record.
type Record struct {
	Kind      string          `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewRecord marshals v into a record of the given kind stamped with the
// current time.
func NewRecord(kind string, v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode %s record: %w", kind, err)
	}
	return Record{Kind: kind, Timestamp: time.Now().UTC(), Data: data}, nil
}

// Decode unmarshals the record payload into v.
func (r Record) Decode(v any) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s record: %w", r.Kind, err)
	}
	return nil
}

// SessionStore persists session logs keyed by session identifier.
//
// Contract:
//   - Append commits exactly one record or none; concurrent appends from
//     goroutines or processes never interleave partial records
//   - Load returns committed records in append order; an unknown session
//     yields an empty slice, not an error
type SessionStore interface {
	Append(ctx context.Context, sessionID string, rec Record) error
	Load(ctx context.Context, sessionID string) ([]Record, error)
}

// AppendJSON is a convenience wrapper building a record from v and appending it.
func AppendJSON(ctx context.Context, store SessionStore, sessionID, kind string, v any) error {
	rec, err := NewRecord(kind, v)
	if err != nil {
		return err
	}
	return store.Append(ctx, sessionID, rec)
}

// FilterRecords returns the records of the given kind preserving order.
func FilterRecords(records []Record, kind string) []Record {
	var out []Record
	for _, r := range records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// RunSummary is the payload of a run record: one line of history per
// completed Runner run.
type RunSummary struct {
	RunID         string  `json:"run_id"`
	SessionID     string  `json:"session_id"`
	Outcome       Outcome `json:"outcome"`
	Turns         int     `json:"turns"`
	MaxTurns      int     `json:"max_turns"`
	OutputSummary string  `json:"output_summary"`
	Error         string  `json:"error,omitempty"`
	TotalTokens   int     `json:"total_tokens,omitempty"`
}
