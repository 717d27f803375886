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
	"encoding/json"
	"errors"
	"fmt"
)

// Slot is the typed durable slot of one key.
//
// Values are encoded as JSON. A slot is owned by a single writer, usually the
// grain whose identity the key is derived from.
type Slot[T any] struct {
	store Store
	key   string
}

// NewSlot creates a Slot bound to key in store
func NewSlot[T any](store Store, key string) *Slot[T] {
	return &Slot[T]{store: store, key: key}
}

// Key returns the key of the slot
func (s *Slot[T]) Key() string {
	return s.key
}

// Read returns the value held by the slot.
// found is false when the slot is empty.
func (s *Slot[T]) Read(ctx context.Context) (value *T, found bool, err error) {
	bytea, err := s.store.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read slot=(%s): %w", s.key, err)
	}

	value = new(T)
	if err := json.Unmarshal(bytea, value); err != nil {
		return nil, false, fmt.Errorf("failed to decode slot=(%s): %w", s.key, err)
	}
	return value, true, nil
}

// Write replaces the value held by the slot
func (s *Slot[T]) Write(ctx context.Context, value *T) error {
	bytea, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode slot=(%s): %w", s.key, err)
	}

	if err := s.store.Put(ctx, s.key, bytea); err != nil {
		return fmt.Errorf("failed to write slot=(%s): %w", s.key, err)
	}
	return nil
}

// Clear empties the slot
func (s *Slot[T]) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to clear slot=(%s): %w", s.key, err)
	}
	return nil
}
