package memory

import (
	"context"
	"slices"
	"sync"

	"backoffice/internal/store"
)

// Store keeps slot payloads in process memory. Nothing survives a restart.
type Store struct {
	mu    sync.RWMutex
	slots map[store.Slot][]byte
	saves int
}

func New() *Store {
	return &Store{slots: make(map[store.Slot][]byte)}
}

func (s *Store) Load(_ context.Context, slot store.Slot) ([]byte, error) {
	if !slot.Valid() {
		return nil, store.ErrInvalidSlot
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.slots[slot]
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(payload), nil
}

func (s *Store) SaveAll(_ context.Context, payloads map[store.Slot][]byte) error {
	for slot := range payloads {
		if !slot.Valid() {
			return store.ErrInvalidSlot
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for slot, payload := range payloads {
		s.slots[slot] = slices.Clone(payload)
	}
	s.saves++
	return nil
}

// Saves reports how many SaveAll calls have completed.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}
