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

package config

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/persistence"
	"github.com/systemorph/meshweaver/persistence/plugins/bolt"
	"github.com/systemorph/meshweaver/persistence/plugins/etcd"
	"github.com/systemorph/meshweaver/persistence/plugins/redis"
	"github.com/systemorph/meshweaver/persistence/plugins/sqlite"
	"github.com/systemorph/meshweaver/stream"
	"github.com/systemorph/meshweaver/stream/nats"
)

// Logger returns a zap logger at the configured level writing to stdout
func (c *Config) Logger() log.Logger {
	return log.NewZap(c.Level(), os.Stdout)
}

// Stores opens the catalog and state stores. Both are the same store when they
// are configured identically.
func (c *Config) Stores(ctx context.Context) (catalogStore, stateStore persistence.Store, err error) {
	catalogStore, err = OpenStore(ctx, c.Catalog.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open the catalog store: %w", err)
	}
	if c.State.equal(c.Catalog.Store) {
		return catalogStore, catalogStore, nil
	}

	stateStore, err = OpenStore(ctx, c.State)
	if err != nil {
		return nil, nil, multierr.Append(fmt.Errorf("failed to open the state store: %w", err), catalogStore.Close())
	}
	return catalogStore, stateStore, nil
}

// Providers opens the configured stream providers. On failure the providers
// already opened are closed.
func (c *Config) Providers(ctx context.Context, logger log.Logger) ([]stream.Provider, error) {
	providers := make([]stream.Provider, 0, len(c.Streams))
	for _, s := range c.Streams {
		provider, err := OpenProvider(ctx, s, logger)
		if err != nil {
			for _, opened := range providers {
				err = multierr.Append(err, opened.Close(ctx))
			}
			return nil, err
		}
		providers = append(providers, provider)
	}
	return providers, nil
}

// OpenStore opens the backend described by config
func OpenStore(ctx context.Context, config StoreConfig) (persistence.Store, error) {
	switch config.Kind {
	case StoreMemory, "":
		return persistence.NewMemoryStore(), nil
	case StoreBolt:
		return bolt.Open(config.Path)
	case StoreSQLite:
		return sqlite.Open(config.Path)
	case StoreEtcd:
		return etcd.Open(ctx, etcd.Config{
			Endpoints:   config.Endpoints,
			Namespace:   config.Namespace,
			DialTimeout: config.DialTimeout,
			Username:    config.Username,
			Password:    config.Password,
		})
	case StoreRedis:
		return redis.Open(ctx, redis.Config{
			Addr:        config.Addr,
			Password:    config.Password,
			DB:          config.DB,
			Prefix:      config.Prefix,
			DialTimeout: config.DialTimeout,
		})
	default:
		return nil, fmt.Errorf("%w: store %q", ErrUnknownKind, config.Kind)
	}
}

// OpenProvider opens the stream provider described by config
func OpenProvider(ctx context.Context, config StreamConfig, logger log.Logger) (stream.Provider, error) {
	switch config.Kind {
	case StreamMemory:
		opts := []stream.MemoryOption{stream.WithLogger(logger)}
		if config.Name != "" {
			opts = append(opts, stream.WithName(config.Name))
		}
		if config.Retention > 0 {
			opts = append(opts, stream.WithRetention(config.Retention))
		}
		return stream.NewMemoryProvider(opts...), nil
	case StreamNATS:
		return nats.Open(ctx, nats.Config{
			URL:           config.URL,
			Name:          config.Name,
			StreamName:    config.StreamName,
			SubjectPrefix: config.SubjectPrefix,
			MaxAge:        config.MaxAge,
			InMemory:      config.InMemory,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("%w: stream %q", ErrUnknownKind, config.Kind)
	}
}
