package kvstore

import (
	"context"
	"sync"

	"github.com/dailysync/keeper/internal/bus"
)

// Memory is an in-process Store used by tests and by environments without a
// writable disk. It mirrors Diskv semantics, including storage-changed
// notifications.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
	bus  *bus.Bus
}

// NewMemory creates an empty in-memory store.
func NewMemory(b *bus.Bus) *Memory {
	return &Memory{data: make(map[string][]byte), bus: b}
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp, nil
}

func (s *Memory) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(bus.TopicStorage, map[string]any{key: string(value)})
	}
	return nil
}

func (s *Memory) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(bus.TopicStorage, map[string]any{key: nil})
	}
	return nil
}
