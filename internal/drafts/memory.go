package drafts

import (
	"context"
	"sync"
)

// MemoryStore keeps drafts in-process. Drafts do not survive a restart;
// the state machine restarts the questionnaire when that happens.
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[int64]Draft
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[int64]Draft)}
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (Draft, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[userID]
	return d, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, userID int64, draft Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[userID] = draft
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, userID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
