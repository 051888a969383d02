package storage

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]map[string][]byte // sessionID -> key -> value
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[sessionID][key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, sessionID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.values[sessionID]
	if !ok {
		session = make(map[string][]byte)
		s.values[sessionID] = session
	}
	v := make([]byte, len(value))
	copy(v, value)
	session[key] = v
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values[sessionID], key)
	if len(s.values[sessionID]) == 0 {
		delete(s.values, sessionID)
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
