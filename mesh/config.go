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

package mesh

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/systemorph/meshweaver/config"
	"github.com/systemorph/meshweaver/persistence"
	"github.com/systemorph/meshweaver/stream"
)

// FromConfig builds a mesh from a node configuration and seeds its catalog with the
// configured nodes. Options given here are applied after the configuration and
// override it. The configured modules are installed with Bootstrap.
func FromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Mesh, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger()
	catalogStore, stateStore, err := cfg.Stores(ctx)
	if err != nil {
		return nil, err
	}
	providers, err := cfg.Providers(ctx, logger)
	if err != nil {
		return nil, multierr.Append(err, closeStores(catalogStore, stateStore))
	}

	base := []Option{
		WithLogger(logger),
		WithCatalogStore(catalogStore),
		WithStateStore(stateStore),
		WithCatalogConfig(cfg.CatalogConfig()),
		WithAskTimeout(cfg.AskTimeout),
	}
	if cfg.PassivationTimeout > 0 {
		base = append(base, WithPassivationAfter(cfg.PassivationTimeout))
	}
	for _, provider := range providers {
		base = append(base, WithStreamProvider(provider))
	}

	m, err := New(cfg.Name, append(base, opts...)...)
	if err != nil {
		return nil, multierr.Combine(err, closeProviders(ctx, providers), closeStores(catalogStore, stateStore))
	}

	for _, n := range cfg.Nodes {
		if err := m.UpdateNode(ctx, n); err != nil {
			return nil, multierr.Combine(
				fmt.Errorf("failed to seed node=(%s): %w", n.Key, err),
				closeProviders(ctx, providers),
				closeStores(catalogStore, stateStore))
		}
	}
	return m, nil
}

// Bootstrap installs the given module locations in order. A failing module is
// logged and skipped; the combined error is returned.
func (m *Mesh) Bootstrap(ctx context.Context, locations ...string) error {
	var err error
	for _, location := range locations {
		installed, installErr := m.InstallModule(ctx, location)
		if installErr != nil {
			m.logger.Errorf("failed to install module=(%s): %v", location, installErr)
			err = multierr.Append(err, installErr)
			continue
		}
		m.logger.Infof("module=(%s) installed with %d nodes", location, len(installed))
	}
	return err
}

func closeProviders(ctx context.Context, providers []stream.Provider) error {
	var err error
	for _, provider := range providers {
		err = multierr.Append(err, provider.Close(ctx))
	}
	return err
}

func closeStores(catalogStore, stateStore persistence.Store) error {
	err := catalogStore.Close()
	if stateStore != catalogStore {
		err = multierr.Append(err, stateStore.Close())
	}
	return err
}
