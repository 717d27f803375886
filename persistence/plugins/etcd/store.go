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

// Package etcd provides a persistence.Store backed by an etcd v3 cluster.
//
// Keys are stored under a namespace so that several meshes can share one cluster.
package etcd

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/flowchartsman/retry"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
	"go.uber.org/atomic"

	"github.com/systemorph/meshweaver/persistence"
)

const (
	defaultNamespace   = "meshweaver/"
	defaultDialTimeout = 5 * time.Second
	defaultTimeout     = 5 * time.Second
	connectAttempts    = 5
	healthKey          = "health"
)

// Config defines the etcd store configuration
type Config struct {
	// Endpoints are the etcd client endpoints
	Endpoints []string
	// Namespace prefixes every key. Defaults to "meshweaver/".
	Namespace string
	// DialTimeout bounds the initial connection
	DialTimeout time.Duration
	// Timeout bounds every single request
	Timeout time.Duration
	// TLS holds the client TLS configuration, if any
	TLS *tls.Config
	// Username and Password enable authentication
	Username string
	Password string
}

func (c *Config) sanitize() {
	if c.Namespace == "" {
		c.Namespace = defaultNamespace
	}
	if !strings.HasSuffix(c.Namespace, "/") {
		c.Namespace += "/"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Store implements persistence.Store on etcd
type Store struct {
	client  *clientv3.Client
	kv      clientv3.KV
	timeout time.Duration
	closed  *atomic.Bool
}

var _ persistence.Store = (*Store)(nil)

// Open connects to the etcd cluster and checks it is reachable.
// The health check is retried with an exponential backoff.
func Open(ctx context.Context, config Config) (*Store, error) {
	config.sanitize()

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
		TLS:         config.TLS,
		Username:    config.Username,
		Password:    config.Password,
		Context:     ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd: creating client: %w", err)
	}

	store := &Store{
		client:  client,
		kv:      namespace.NewKV(client.KV, config.Namespace),
		timeout: config.Timeout,
		closed:  atomic.NewBool(false),
	}

	retrier := retry.NewRetrier(connectAttempts, 100*time.Millisecond, time.Second)
	if err := retrier.RunContext(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, store.timeout)
		defer cancel()
		_, err := store.kv.Get(ctx, healthKey, clientv3.WithCountOnly())
		return err
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("etcd: store is not reachable: %w", err)
	}

	return store, nil
}

// Get returns the value stored under key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if len(resp.Kvs) == 0 {
		return nil, persistence.ErrKeyNotFound
	}
	return resp.Kvs[0].Value, nil
}

// Put inserts or replaces the value stored under key
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.kv.Put(ctx, key, string(value))
	return err
}

// Delete removes key
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.kv.Delete(ctx, key)
	return err
}

// Keys lists the keys starting with prefix in ascending order
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.kv.Get(ctx, prefix,
		clientv3.WithPrefix(),
		clientv3.WithKeysOnly(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		if key := string(kv.Key); key != healthKey {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close closes the etcd client
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
