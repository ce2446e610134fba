package memory

import (
	"context"
	"sync"

	"github.com/artpar/layertree/internal/interfaces"
)

// Store is a map-backed gateway used by tests and dry runs.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
	saves  int
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{values: make(map[string][]byte)}
}

// Save stores a copy of value.
func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)
	s.saves++
	return nil
}

// Load returns a copy of the stored value.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// Saves returns how many writes the store has seen.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *Store) Close() error { return nil }

var _ interfaces.Gateway = (*Store)(nil)
