/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package persistence

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"go.uber.org/atomic"
)

// MemoryStore is an in-memory Store.
// It is meant for tests and single process deployments that do not need durability.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed *atomic.Bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new instance of MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:   make(map[string][]byte),
		closed: atomic.NewBool(false),
	}
}

// Get returns the value stored under key
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	value, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrKeyNotFound
	}
	return slices.Clone(value), nil
}

// Put inserts or replaces the value stored under key
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.data[key] = slices.Clone(value)
	s.mu.Unlock()
	return nil
}

// Delete removes key
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Keys lists the keys starting with prefix in ascending order
func (s *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored keys
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close clears the store
func (s *MemoryStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	clear(s.data)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) check(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return ContextErr(ctx)
}
