package repository

import (
	"context"
	"sync"
	"time"

	"github.com/chetan-code/taskboard/internal/models"
)

// MemoryChallengeStore is the default store for a single instance.
type MemoryChallengeStore struct {
	mu    sync.Mutex
	items map[string]models.Challenge
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryChallengeStore(ttl time.Duration) *MemoryChallengeStore {
	return &MemoryChallengeStore{
		items: make(map[string]models.Challenge),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryChallengeStore) Save(_ context.Context, c models.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, existing := range s.items {
		if existing.Expired(now, s.ttl) {
			delete(s.items, id)
		}
	}
	s.items[c.ID] = c
	return nil
}

func (s *MemoryChallengeStore) Fetch(_ context.Context, id string) (models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.items[id]
	if !ok {
		return models.Challenge{}, ErrChallengeNotFound
	}
	if c.Expired(s.now(), s.ttl) {
		delete(s.items, id)
		return models.Challenge{}, ErrChallengeNotFound
	}
	return c, nil
}

func (s *MemoryChallengeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}
