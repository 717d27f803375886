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

// Package catalog is the directory of mesh nodes.
//
// It resolves an address to the node describing how to host and reach it, persists
// node descriptors written by deployment tooling and installs modules, registering
// every node they declare.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/systemorph/meshweaver/address"
	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/internal/metric"
	"github.com/systemorph/meshweaver/internal/xsync"
	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/module"
	"github.com/systemorph/meshweaver/node"
	"github.com/systemorph/meshweaver/persistence"
)

// Catalog resolves addresses to mesh nodes.
// It holds no cache of its own: every lookup reads the store.
type Catalog struct {
	store    persistence.Store
	config   *Config
	mappers  []KeyMapper
	source   module.Source
	logger   log.Logger
	metric   *metric.MeshMetric
	versions *xsync.Map[string, *semver.Version]
	modules  mapset.Set[string]
}

// Option configures the Catalog
type Option func(*Catalog)

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// WithModuleSource sets the source InstallModule loads modules from
func WithModuleSource(source module.Source) Option {
	return func(c *Catalog) {
		c.source = source
	}
}

// WithMetric sets the instruments module loads are recorded on
func WithMetric(meshMetric *metric.MeshMetric) Option {
	return func(c *Catalog) {
		c.metric = meshMetric
	}
}

// New creates a Catalog over store. A nil config uses DefaultConfig.
func New(store persistence.Store, config *Config, opts ...Option) (*Catalog, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Catalog{
		store:    store,
		config:   config,
		mappers:  config.mappers(),
		logger:   log.DefaultLogger,
		metric:   metric.NoopMeshMetric(),
		versions: xsync.NewMap[string, *semver.Version](),
		modules:  mapset.NewSet[string](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Key maps an address to the key of the node serving it.
// Hosted addresses are mapped on their inner address.
func (c *Catalog) Key(addr address.Address) (string, error) {
	inner := addr.Inner()
	if err := inner.Validate(); err != nil {
		return "", err
	}
	for _, mapper := range c.mappers {
		if key, ok := mapper.MapKey(inner); ok && key != "" {
			return key, nil
		}
	}
	return "", gerrors.NewErrNodeNotFound(inner.String())
}

// GetNode returns the node serving addr or an error wrapping ErrNodeNotFound.
func (c *Catalog) GetNode(ctx context.Context, addr address.Address) (*node.MeshNode, error) {
	key, err := c.Key(addr)
	if err != nil {
		return nil, err
	}

	n, found, err := c.slot(key).Read(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, gerrors.NewErrNodeNotFound(addr.Inner().String())
	}
	return n, nil
}

// UpdateNode validates and stores n under its key. The last write wins.
func (c *Catalog) UpdateNode(ctx context.Context, n *node.MeshNode) error {
	if n == nil {
		return gerrors.NewErrInvalidNode(errors.New("node is nil"))
	}
	if err := n.Validate(); err != nil {
		return err
	}
	if err := c.slot(n.Key).Write(ctx, n.Normalized()); err != nil {
		return err
	}
	c.logger.Debugf("mesh node=(%s) updated", n.Key)
	return nil
}

// DeleteNode removes the node stored under key. Deleting a missing node is a no-op.
func (c *Catalog) DeleteNode(ctx context.Context, key string) error {
	if err := c.slot(key).Clear(ctx); err != nil {
		return err
	}
	c.logger.Debugf("mesh node=(%s) deleted", key)
	return nil
}

// Nodes returns every stored node sorted by key.
func (c *Catalog) Nodes(ctx context.Context) ([]*node.MeshNode, error) {
	prefix := c.config.Namespace + "/"
	keys, err := c.store.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}

	nodes := make([]*node.MeshNode, 0, len(keys))
	for _, key := range keys {
		n, found, err := c.slot(strings.TrimPrefix(key, prefix)).Read(ctx)
		if err != nil {
			return nil, err
		}
		if found {
			nodes = append(nodes, n)
		}
	}

	slices.SortFunc(nodes, func(a, b *node.MeshNode) int { return strings.Compare(a.Key, b.Key) })
	return nodes, nil
}

// StorageInfo derives the storage view of the node serving addr.
func (c *Catalog) StorageInfo(ctx context.Context, addr address.Address) (node.StorageInfo, error) {
	n, err := c.GetNode(ctx, addr)
	if err != nil {
		return node.StorageInfo{}, err
	}
	return n.StorageInfo(), nil
}

// InstallModule loads the module at location in a fresh loader and registers every
// node it declares, in declaration order. Nodes registered before a failing one stay
// registered; the returned slice holds them. The loader is unloaded before returning.
func (c *Catalog) InstallModule(ctx context.Context, location string) (installed []*node.MeshNode, err error) {
	if c.source == nil {
		return nil, gerrors.NewModuleLoadError(location, gerrors.ErrModuleSourceNotFound)
	}

	loader := c.source.NewLoader()
	defer func() {
		if uerr := loader.Unload(ctx); uerr != nil {
			c.logger.Warnf("failed to unload module=(%s): %v", location, uerr)
		}
	}()

	m, err := loader.Load(ctx, location)
	if err != nil {
		c.logger.Errorf("failed to load module=(%s): %v", location, err)
		return nil, asModuleLoadError(location, err)
	}
	c.metric.RecordModuleLoad(ctx)

	version, err := semver.NewVersion(m.Version())
	if err != nil {
		c.logger.Errorf("module=(%s) at location=(%s) has an invalid version=(%s): %v", m.Name(), location, m.Version(), err)
		return nil, gerrors.NewModuleLoadError(location, fmt.Errorf("invalid version %q: %w", m.Version(), err))
	}
	c.compareVersion(m.Name(), version)

	for _, n := range m.Nodes() {
		if n.InstantiationKind == node.InstantiationKindHubConfiguration && n.ModuleLocation == "" {
			n.ModuleLocation = location
		}
		if err := c.UpdateNode(ctx, n); err != nil {
			c.logger.Errorf("module=(%s) registered %d node(s) before failing: %v", m.Name(), len(installed), err)
			return installed, gerrors.NewModuleLoadError(location, err)
		}
		installed = append(installed, n)
	}

	c.versions.Set(m.Name(), version)
	c.modules.Add(m.Name())
	c.logger.Infof("module=(%s) version=(%s) installed with %d node(s)", m.Name(), version, len(installed))
	return installed, nil
}

// Modules returns the names of the modules installed through this catalog, sorted.
func (c *Catalog) Modules() []string {
	names := c.modules.ToSlice()
	slices.Sort(names)
	return names
}

// ModuleVersion returns the last installed version of a module.
func (c *Catalog) ModuleVersion(name string) (string, bool) {
	version, ok := c.versions.Get(name)
	if !ok {
		return "", false
	}
	return version.String(), true
}

func (c *Catalog) compareVersion(name string, version *semver.Version) {
	previous, ok := c.versions.Get(name)
	if !ok {
		return
	}
	switch version.Compare(previous) {
	case 1:
		c.logger.Infof("upgrading module=(%s) from version=(%s) to version=(%s)", name, previous, version)
	case -1:
		c.logger.Warnf("downgrading module=(%s) from version=(%s) to version=(%s)", name, previous, version)
	default:
		c.logger.Infof("reinstalling module=(%s) version=(%s)", name, version)
	}
}

func (c *Catalog) slot(key string) *persistence.Slot[node.MeshNode] {
	return persistence.NewSlot[node.MeshNode](c.store, c.config.Namespace+"/"+key)
}

func asModuleLoadError(location string, err error) error {
	var loadErr *gerrors.ModuleLoadError
	if errors.As(err, &loadErr) {
		return err
	}
	return gerrors.NewModuleLoadError(location, err)
}
