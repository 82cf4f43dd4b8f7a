package player

import (
	"context"
	"sync"
)

// MemoryStore is an in-process store for local development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]Record)}
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Upsert(_ context.Context, userID int64, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		rec = Record{UserID: userID, Stage: StageAwaitName, History: EmptyHistory}
	}
	applyPatch(&rec, patch)
	s.records[userID] = rec
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func applyPatch(rec *Record, patch Patch) {
	if patch.Stage != nil {
		rec.Stage = *patch.Stage
	}
	if patch.Profile != nil {
		rec.Profile = *patch.Profile
	}
	if patch.History != nil {
		rec.History = *patch.History
	}
}
