package answercache

import (
	"context"
	"sync"
	"time"

	"github.com/obara/supportdesk/internal/domain/chat"
)

type cachedAnswer struct {
	payload   chat.AnswerRecord
	expiresAt time.Time
}

// MemoryStore is an in-memory answer cache used for tests and single-node
// deployments without Valkey.
type MemoryStore struct {
	mu      sync.RWMutex
	answers map[string]cachedAnswer
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{answers: make(map[string]cachedAnswer)}
}

// Get implements chat.AnswerStore.
func (s *MemoryStore) Get(_ context.Context, key string) (chat.AnswerRecord, bool, error) {
	if key == "" {
		return chat.AnswerRecord{}, false, nil
	}
	s.mu.RLock()
	record, ok := s.answers[key]
	s.mu.RUnlock()
	if !ok {
		return chat.AnswerRecord{}, false, nil
	}
	if hasExpired(record.expiresAt) {
		s.mu.Lock()
		delete(s.answers, key)
		s.mu.Unlock()
		return chat.AnswerRecord{}, false, nil
	}
	return record.payload, true, nil
}

// Save caches the answer with an optional TTL.
func (s *MemoryStore) Save(_ context.Context, record chat.AnswerRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	s.answers[record.Key] = cachedAnswer{payload: record, expiresAt: exp}
	return nil
}

func hasExpired(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return ts.Before(time.Now())
}

var _ chat.AnswerStore = (*MemoryStore)(nil)
