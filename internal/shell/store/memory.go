package store

import (
	"context"
	"sync"

	"github.com/artpar/ngreen/internal/core/deployment"
)

// =============================================================================
// MemoryStore
// =============================================================================

// MemoryStore implements StateStore in memory. It keeps the encoded document
// rather than the struct so callers can compare persisted bytes before and
// after an operation.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int

	// LoadErr and SaveErr, when set, are returned instead of touching data.
	LoadErr error
	SaveErr error
}

// NewMemoryStore creates a store holding initial, or nothing when nil.
func NewMemoryStore(initial *deployment.State) (*MemoryStore, error) {
	s := &MemoryStore{}
	if initial != nil {
		data, err := deployment.Encode(initial)
		if err != nil {
			return nil, err
		}
		s.data = data
	}
	return s, nil
}

// Load decodes the held document or returns the default state.
func (s *MemoryStore) Load(ctx context.Context) (*deployment.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	if s.data == nil {
		return deployment.DefaultState(), nil
	}
	state, err := deployment.Decode(s.data)
	if err != nil {
		return nil, NewStoreError("Load", "state", "memory", err.Error(), ErrInvalidData)
	}
	return state, nil
}

// Save encodes and holds state.
func (s *MemoryStore) Save(ctx context.Context, state *deployment.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SaveErr != nil {
		return NewStoreError("Save", "state", "memory", s.SaveErr.Error(), deployment.ErrPersistence)
	}
	data, err := deployment.Encode(state)
	if err != nil {
		return NewStoreError("Save", "state", "memory", err.Error(), deployment.ErrPersistence)
	}
	s.data = data
	s.saves++
	return nil
}

// Bytes returns a copy of the held document, nil if nothing was saved.
func (s *MemoryStore) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

// Saves returns the number of successful saves.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
