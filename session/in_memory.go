package session

import (
	"context"
	"sort"
	"sync"

	"github.com/lucasXiaofan/med-deepresearch/core"
)

// InMemoryStore is a volatile SessionStore keeping records in a process
// local map. It is safe for concurrent access. Loaded slices are copies.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]core.Record
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]core.Record)}
}

// Append implements core.SessionStore.
func (s *InMemoryStore) Append(ctx context.Context, sessionID string, rec core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateID(sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sessionID] = append(s.records[sessionID], rec)
	return nil
}

// Load implements core.SessionStore.
func (s *InMemoryStore) Load(ctx context.Context, sessionID string) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Record{}, s.records[sessionID]...), nil
}

// Sessions returns the IDs of all sessions holding at least one record, sorted.
func (s *InMemoryStore) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
