package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/lucasXiaofan/med-deepresearch/core"
	"github.com/lucasXiaofan/med-deepresearch/logging"
)

const (
	fileExt  = ".jsonl"
	lockExt  = ".lock"
	lockPoll = 10 * time.Millisecond
)

// FileStoreOptions configures a FileStore.
type FileStoreOptions struct {
	Logger logging.Logger
}

// FileStore persists each session as <dir>/<session id>.jsonl, one record per
// line.
//
// Every append takes an exclusive advisory lock on a sibling .lock file and
// fsyncs the line before releasing it, so writers in separate processes never
// interleave. Load takes the shared lock.
//
// A crash can leave a torn trailing line. Load ignores it and the next append
// terminates it first. Lines that fail to decode are logged and skipped.
//
// FileStore is safe for concurrent use.
type FileStore struct {
	dir    string
	logger logging.Logger
}

// NewFileStore creates the directory if needed and returns a store rooted there.
func NewFileStore(dir string, optFns ...func(o *FileStoreOptions)) (*FileStore, error) {
	opts := FileStoreOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir, logger: opts.Logger}, nil
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+fileExt)
}

// Append implements core.SessionStore.
func (s *FileStore) Append(ctx context.Context, sessionID string, rec core.Record) error {
	if err := ValidateID(sessionID); err != nil {
		return err
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	line = append(line, '\n')

	path := s.path(sessionID)
	lock := flock.New(path + lockExt)
	locked, err := lock.TryLockContext(ctx, lockPoll)
	if err != nil {
		return fmt.Errorf("lock session %s: %w", sessionID, err)
	}
	if !locked {
		return fmt.Errorf("lock session %s: not acquired", sessionID)
	}
	defer func() { _ = lock.Unlock() }()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open session %s: %w", sessionID, err)
	}
	defer f.Close()

	// A writer that died mid-line leaves a fragment without a newline;
	// terminate it so the new record starts on its own line.
	if torn, err := endsWithoutNewline(f); err != nil {
		return fmt.Errorf("inspect session %s: %w", sessionID, err)
	} else if torn {
		line = append([]byte{'\n'}, line...)
	}

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write session %s: %w", sessionID, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync session %s: %w", sessionID, err)
	}

	s.logger.Debug("session.append", "session_id", sessionID, "kind", rec.Kind)
	return nil
}

func endsWithoutNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, info.Size()-1); err != nil {
		return false, err
	}
	return buf[0] != '\n', nil
}

// Load implements core.SessionStore. Lines that fail to decode (left behind
// by an interrupted writer) are skipped.
func (s *FileStore) Load(ctx context.Context, sessionID string) ([]core.Record, error) {
	if err := ValidateID(sessionID); err != nil {
		return nil, err
	}

	path := s.path(sessionID)
	lock := flock.New(path + lockExt)
	locked, err := lock.TryRLockContext(ctx, lockPoll)
	if err != nil {
		return nil, fmt.Errorf("lock session %s: %w", sessionID, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock session %s: not acquired", sessionID)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []core.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}

	return s.decodeLines(sessionID, data), nil
}

func (s *FileStore) decodeLines(sessionID string, data []byte) []core.Record {
	records := []core.Record{}
	reader := bufio.NewReader(bytes.NewReader(data))
	for lineNo := 1; ; lineNo++ {
		line, err := reader.ReadBytes('\n')
		complete := err == nil
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var rec core.Record
			if decodeErr := json.Unmarshal(line, &rec); decodeErr != nil {
				s.logger.Warn("session.load.skip_line", "session_id", sessionID, "line", lineNo, "torn", !complete)
			} else {
				records = append(records, rec)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("session.load.read_error", "session_id", sessionID, "error", err.Error())
			}
			return records
		}
	}
}

// Summary describes one stored session.
type Summary struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Runs      int       `json:"runs"`
	Notes     int       `json:"store_items"`
	Records   int       `json:"records"`
}

// List summarizes every session in the store, most recently updated first.
func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+fileExt))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	summaries := make([]Summary, 0, len(matches))
	for _, m := range matches {
		id := strings.TrimSuffix(filepath.Base(m), fileExt)
		records, err := s.Load(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("session.list.skip", "session_id", id, "error", err.Error())
			continue
		}
		summaries = append(summaries, Summarize(id, records))
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Summarize computes a Summary from a session's records.
func Summarize(id string, records []core.Record) Summary {
	sum := Summary{ID: id, Records: len(records)}
	for i, r := range records {
		if i == 0 || r.Timestamp.Before(sum.CreatedAt) {
			sum.CreatedAt = r.Timestamp
		}
		if r.Timestamp.After(sum.UpdatedAt) {
			sum.UpdatedAt = r.Timestamp
		}
		switch r.Kind {
		case core.RecordRun:
			sum.Runs++
		case core.RecordNote:
			sum.Notes++
		}
	}
	return sum
}
