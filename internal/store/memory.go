package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore implements Store with an in-process map. Nothing survives a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	ks   Keyspace
	data map[string][]byte
}

func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{
		ks:   NewKeyspace(prefix),
		data: make(map[string][]byte),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string, dst any) error {
	k, err := s.ks.Key(key)
	if err != nil {
		return err
	}

	s.mu.RLock()
	raw, ok := s.data[k]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", k, err)
	}
	return nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value any) error {
	k, err := s.ks.Key(key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", k, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[k] = raw
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	ks, err := s.ks.keys(keys)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range ks {
		delete(s.data, k)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
