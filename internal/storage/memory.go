// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a process-local Store. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	quota  int64
	failOn func(key string) error
}

// NewMemoryStore creates an empty in-memory store. A quota of 0 is unlimited.
func NewMemoryStore(quota int64) *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte), quota: quota}
}

// FailWrites makes every Set for which fn returns non-nil fail with that
// error. Pass nil to restore normal behavior.
func (s *MemoryStore) FailWrites(fn func(key string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn = fn
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failOn != nil {
		if err := s.failOn(key); err != nil {
			return &OpError{Op: "set", Key: key, Err: err}
		}
	}
	var total int64
	for _, v := range s.data {
		total += int64(len(v))
	}
	if !quotaAllows(s.quota, total, int64(len(s.data[key])), int64(len(value))) {
		return &OpError{Op: "set", Key: key, Err: ErrQuotaExceeded}
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Keys implements Store.
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
