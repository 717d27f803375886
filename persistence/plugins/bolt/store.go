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

// Package bolt provides a persistence.Store backed by go.etcd.io/bbolt.
package bolt

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"
	"go.uber.org/atomic"

	"github.com/systemorph/meshweaver/persistence"
)

const (
	fileMode          os.FileMode = 0o600
	defaultBucketName             = "mesh"
)

var defaultOptions = &bbolt.Options{Timeout: 5 * time.Second, NoGrowSync: true}

// Store implements persistence.Store on a single bbolt file.
//
// bbolt provides single-writer/multi-reader semantics; the store only guards
// its closed state.
type Store struct {
	db     *bbolt.DB
	bucket []byte
	closed *atomic.Bool
}

var _ persistence.Store = (*Store)(nil)

// Option configures the Store
type Option func(*Store)

// WithBucket sets the bucket holding the keys. Defaults to "mesh".
func WithBucket(name string) Option {
	return func(s *Store) {
		s.bucket = []byte(name)
	}
}

// Open opens (or creates) the bbolt database at path
func Open(path string, opts ...Option) (*Store, error) {
	store := &Store{
		bucket: []byte(defaultBucketName),
		closed: atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt(store)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bolt: creating folder: %w", err)
	}

	options := *defaultOptions
	db, err := bbolt.Open(path, fileMode, &options)
	if err != nil {
		return nil, fmt.Errorf("bolt: opening database: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(store.bucket)
		return e
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: initializing bucket: %w", err)
	}

	store.db = db
	return store, nil
}

// Get returns the value stored under key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get([]byte(key))
		if raw == nil {
			return persistence.ErrKeyNotFound
		}
		// bbolt values are only valid for the life of the transaction
		value = bytes.Clone(raw)
		return nil
	})
	return value, err
}

// Put inserts or replaces the value stored under key
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), value)
	})
}

// Delete removes key
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// Keys lists the keys starting with prefix in ascending order
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	keys := make([]string, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(s.bucket).Cursor()
		p := []byte(prefix)
		for k, _ := cursor.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = cursor.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.db.Path()
}

// Close releases the underlying bbolt handle
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) check(ctx context.Context) error {
	if s.closed.Load() {
		return persistence.ErrStoreClosed
	}
	return persistence.ContextErr(ctx)
}
