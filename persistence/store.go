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

// Package persistence holds the durable key/value contract shared by the catalog
// and the grains of the mesh, together with an in-memory implementation.
//
// Backends living under plugins/ implement the same contract on bbolt, etcd,
// Redis and SQLite.
package persistence

import "context"

// Store is a durable key/value store.
//
// Implementations must be safe for concurrent use. Values are opaque bytes;
// callers own their encoding.
type Store interface {
	// Get returns the value stored under key.
	// It returns ErrKeyNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put inserts or replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Keys lists the keys starting with prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the resources held by the store.
	Close() error
}

// ContextErr returns the context error when ctx is already done
func ContextErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
