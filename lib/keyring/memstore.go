// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"context"
	"slices"
	"sync"
)

// MemStore is an in-memory Store for tests and ephemeral
// deployments. Safe for concurrent use.
type MemStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, keyID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[keyID]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(record), nil
}

// Put implements Store.
func (s *MemStore) Put(_ context.Context, keyID string, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[keyID] = slices.Clone(record)
	return nil
}

// Delete implements Store.
func (s *MemStore) Delete(_ context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, keyID)
	return nil
}

// List implements Store.
func (s *MemStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	return keys, nil
}

// Len returns the number of stored records.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
