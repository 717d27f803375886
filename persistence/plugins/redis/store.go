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

// Package redis provides a persistence.Store backed by Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/flowchartsman/retry"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/atomic"

	"github.com/systemorph/meshweaver/persistence"
)

const (
	defaultPrefix   = "meshweaver:"
	scanCount       = 256
	connectAttempts = 5
)

// Config defines the Redis store configuration
type Config struct {
	// Addr is the host:port of the Redis server
	Addr string
	// Password authenticates the connection, if set
	Password string
	// DB selects the database
	DB int
	// Prefix is prepended to every key. Defaults to "meshweaver:".
	Prefix string
	// DialTimeout bounds the connection attempts
	DialTimeout time.Duration
}

// Store implements persistence.Store on Redis strings
type Store struct {
	client *goredis.Client
	prefix string
	closed *atomic.Bool
}

var _ persistence.Store = (*Store)(nil)

// Open connects to Redis and pings it with an exponential backoff
func Open(ctx context.Context, config Config) (*Store, error) {
	prefix := config.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        config.Addr,
		Password:    config.Password,
		DB:          config.DB,
		DialTimeout: config.DialTimeout,
	})

	retrier := retry.NewRetrier(connectAttempts, 100*time.Millisecond, time.Second)
	if err := retrier.RunContext(ctx, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: server is not reachable: %w", err)
	}

	return &Store{
		client: client,
		prefix: prefix,
		closed: atomic.NewBool(false),
	}, nil
}

// Get returns the value stored under key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.ErrKeyNotFound
		}
		return nil, err
	}
	return value, nil
}

// Put inserts or replaces the value stored under key
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

// Delete removes key
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Keys lists the keys starting with prefix in ascending order
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	match := escapePattern(s.prefix+prefix) + "*"
	keys := make([]string, 0)
	iter := s.client.Scan(ctx, 0, match, scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}

	if err := iter.Err(); err != nil {
		return nil, err
	}

	// SCAN may return a key more than once
	sort.Strings(keys)
	return compact(keys), nil
}

// Close closes the Redis client
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}

func (s *Store) check(ctx context.Context) error {
	if s.closed.Load() {
		return persistence.ErrStoreClosed
	}
	return persistence.ContextErr(ctx)
}

func escapePattern(text string) string {
	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range text {
		switch r {
		case '*', '?', '[', ']', '\\':
			_ = builder.WriteByte('\\')
		}
		_, _ = builder.WriteRune(r)
	}
	return builder.String()
}

func compact(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, key := range sorted[1:] {
		if key != out[len(out)-1] {
			out = append(out, key)
		}
	}
	return out
}
