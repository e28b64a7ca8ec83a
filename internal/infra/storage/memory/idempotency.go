package memory

import (
	"context"
	"sync"
	"time"

	"habita/internal/app/middleware"
)

// IdempotencyStore keeps replayable command results in memory.
type IdempotencyStore struct {
	mu    sync.RWMutex
	items map[string]middleware.IdempotencyRecord
	ttl   time.Duration
}

// NewIdempotencyStore returns a store that forgets records older than ttl on write; ttl <= 0 keeps them.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{items: make(map[string]middleware.IdempotencyRecord), ttl: ttl}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[key]
	return rec, ok, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttl > 0 {
		cutoff := time.Now().Add(-s.ttl)
		for k, existing := range s.items {
			if existing.OccurredAt.Before(cutoff) {
				delete(s.items, k)
			}
		}
	}
	s.items[rec.Key] = rec
	return nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
