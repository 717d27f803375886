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

// Package mesh is the entry point of a mesh node.
//
// A Mesh wires the catalog, the address registry and hub grains, the routing
// service and the stream providers on top of one actor system, and exposes the
// caller-facing operations: deliver a message, listen on a stream, install a
// module and manage the catalog nodes.
package mesh

import (
	"context"
	"fmt"
	"sync"
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"

	"github.com/systemorph/meshweaver/actor"
	"github.com/systemorph/meshweaver/address"
	"github.com/systemorph/meshweaver/catalog"
	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/hosting"
	"github.com/systemorph/meshweaver/hub"
	"github.com/systemorph/meshweaver/internal/metric"
	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/module"
	"github.com/systemorph/meshweaver/node"
	"github.com/systemorph/meshweaver/persistence"
	"github.com/systemorph/meshweaver/registry"
	"github.com/systemorph/meshweaver/routing"
	"github.com/systemorph/meshweaver/stream"
)

// identityType is the address type of the default mesh identity
const identityType = "mesh"

// Mesh is a mesh node. It owns the stores and the stream providers it is given
// and releases them on Stop. A stopped Mesh cannot be started again.
type Mesh struct {
	name     string
	identity address.Address
	logger   log.Logger

	catalogStore        persistence.Store
	stateStore          persistence.Store
	catalogConfig       *catalog.Config
	providers           *stream.Providers
	source              module.Source
	statics             *hub.Registry
	meterProvider       otelmetric.MeterProvider
	askTimeout          time.Duration
	passivationAfter    time.Duration
	passivationDisabled bool

	metric   *metric.MeshMetric
	system   *actor.System
	catalog  *catalog.Catalog
	registry *registry.Client
	hubs     *hosting.Client
	router   *routing.Service

	mu      sync.Mutex
	started *atomic.Bool
	stopped bool
}

// New creates a Mesh. Unless overridden, nodes and grain state live in memory and
// a single in-memory stream provider named "memory" is registered.
func New(name string, opts ...Option) (*Mesh, error) {
	if name == "" {
		return nil, gerrors.ErrNameRequired
	}

	m := &Mesh{
		name:       name,
		identity:   address.New(identityType, name),
		logger:     log.DefaultLogger,
		providers:  stream.NewProviders(),
		statics:    hub.NewRegistry(),
		askTimeout: actor.DefaultAskTimeout,
		started:    atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(m)
	}

	if err := m.identity.Validate(); err != nil {
		return nil, err
	}
	if m.catalogStore == nil {
		m.catalogStore = persistence.NewMemoryStore()
	}
	if m.stateStore == nil {
		m.stateStore = persistence.NewMemoryStore()
	}
	if len(m.providers.Names()) == 0 {
		m.providers.Register(stream.NewMemoryProvider(stream.WithLogger(m.logger.With("component", "streams"))))
	}

	meshMetric, err := metric.NewMeshMetric(metric.NewProvider(metric.WithMeterProvider(m.meterProvider)).Meter())
	if err != nil {
		return nil, fmt.Errorf("failed to create the mesh instruments: %w", err)
	}
	m.metric = meshMetric

	catalogOpts := []catalog.Option{catalog.WithLogger(m.logger.With("component", "catalog")), catalog.WithMetric(m.metric)}
	if m.source != nil {
		catalogOpts = append(catalogOpts, catalog.WithModuleSource(m.source))
	}
	m.catalog, err = catalog.New(m.catalogStore, m.catalogConfig, catalogOpts...)
	if err != nil {
		return nil, err
	}

	systemOpts := []actor.Option{
		actor.WithLogger(m.logger.With("component", "actors")),
		actor.WithStateStore(m.stateStore),
		actor.WithAskTimeout(m.askTimeout),
	}
	switch {
	case m.passivationDisabled:
		systemOpts = append(systemOpts, actor.WithPassivationDisabled())
	case m.passivationAfter > 0:
		systemOpts = append(systemOpts, actor.WithPassivationAfter(m.passivationAfter))
	}
	m.system, err = actor.NewSystem(name, systemOpts...)
	if err != nil {
		return nil, err
	}

	m.registry = registry.NewClient(m.system, m.catalog, registry.WithTimeout(m.askTimeout))
	hubOpts := []hosting.ClientOption{
		hosting.WithStaticHubs(m.statics),
		hosting.WithProviders(m.providers),
		hosting.WithMetric(m.metric),
		hosting.WithLogger(m.logger.With("component", "hosting")),
		hosting.WithTimeout(m.askTimeout),
	}
	if m.source != nil {
		hubOpts = append(hubOpts, hosting.WithModuleSource(m.source))
	}
	m.hubs = hosting.NewClient(m.system, m.catalog, hubOpts...)
	m.router = routing.NewService(m.registry, m.hubs, m.providers,
		routing.WithIdentity(m.identity),
		routing.WithMetric(m.metric),
		routing.WithLogger(m.logger.With("component", "routing")))
	return m, nil
}

// Name returns the mesh name
func (m *Mesh) Name() string {
	return m.name
}

// Identity returns the address of the mesh
func (m *Mesh) Identity() address.Address {
	return m.identity
}

// Catalog returns the catalog of the mesh
func (m *Mesh) Catalog() *catalog.Catalog {
	return m.catalog
}

// Providers returns the stream providers of the mesh
func (m *Mesh) Providers() *stream.Providers {
	return m.providers
}

// Running reports whether the mesh is started
func (m *Mesh) Running() bool {
	return m.started.Load()
}

// Start registers the grain kinds and starts the actor system
func (m *Mesh) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return gerrors.ErrMeshStopped
	}
	if m.started.Load() {
		return nil
	}

	if err := m.registry.Register(); err != nil {
		return err
	}
	if err := m.hubs.Register(); err != nil {
		return err
	}
	if err := m.system.Start(ctx); err != nil {
		return err
	}

	m.started.Store(true)
	m.logger.Infof("mesh=(%s) started with stream providers=%v", m.name, m.providers.Names())
	return nil
}

// Stop deactivates every grain, then closes the stream providers and the stores.
// A mesh that was never started only releases its providers and stores.
func (m *Mesh) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}
	m.stopped = true

	var err error
	if m.started.Swap(false) {
		err = m.system.Stop(ctx)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return m.providers.Close(egCtx)
	})
	eg.Go(m.catalogStore.Close)
	if m.stateStore != m.catalogStore {
		eg.Go(m.stateStore.Close)
	}
	err = multierr.Append(err, eg.Wait())

	if err != nil {
		m.logger.Errorf("mesh=(%s) stopped with errors: %v", m.name, err)
		return err
	}
	m.logger.Infof("mesh=(%s) stopped", m.name)
	return nil
}

// Deliver routes delivery to its target address.
// Delivery failures come back as a failed result, not as an error.
func (m *Mesh) Deliver(ctx context.Context, delivery *hub.Delivery) (*hub.Result, error) {
	if !m.started.Load() {
		return nil, gerrors.ErrMeshNotStarted
	}
	return m.router.Deliver(ctx, delivery)
}

// Send delivers message to target
func (m *Mesh) Send(ctx context.Context, target address.Address, message proto.Message) (*hub.Result, error) {
	return m.Deliver(ctx, hub.NewDelivery(target, message))
}

// RegisterStreamListener makes addr reachable through the info stream and subscribes handler to it.
func (m *Mesh) RegisterStreamListener(ctx context.Context, addr address.Address, info stream.Info, handler stream.Handler, opts ...routing.ListenerOption) (*routing.Listener, error) {
	if !m.started.Load() {
		return nil, gerrors.ErrMeshNotStarted
	}
	return m.router.RegisterStreamListener(ctx, addr, info, handler, opts...)
}

// InstallModule registers the nodes declared by the module at location.
// Nodes registered before a failing one stay registered.
func (m *Mesh) InstallModule(ctx context.Context, location string) ([]*node.MeshNode, error) {
	installed, err := m.catalog.InstallModule(ctx, location)
	for _, n := range installed {
		err = multierr.Append(err, m.forget(ctx, n))
	}
	return installed, err
}

// UpdateNode adds or replaces a node. The cached channel of the node address is
// dropped so the next delivery sees the new node.
func (m *Mesh) UpdateNode(ctx context.Context, n *node.MeshNode) error {
	if err := m.catalog.UpdateNode(ctx, n); err != nil {
		return err
	}
	return m.forget(ctx, n)
}

// DeleteNode removes the node stored under key and drops the cached channel of its address.
func (m *Mesh) DeleteNode(ctx context.Context, key string) error {
	nodes, err := m.catalog.Nodes(ctx)
	if err != nil {
		return err
	}
	if err := m.catalog.DeleteNode(ctx, key); err != nil {
		return err
	}
	for _, n := range nodes {
		if n.Key == key {
			return m.forget(ctx, n)
		}
	}
	return nil
}

// GetNode returns the node serving addr
func (m *Mesh) GetNode(ctx context.Context, addr address.Address) (*node.MeshNode, error) {
	return m.catalog.GetNode(ctx, addr)
}

// Nodes returns every catalog node
func (m *Mesh) Nodes(ctx context.Context) ([]*node.MeshNode, error) {
	return m.catalog.Nodes(ctx)
}

// Resolve returns the delivery channel of addr
func (m *Mesh) Resolve(ctx context.Context, addr address.Address) (stream.Info, error) {
	if !m.started.Load() {
		return stream.Info{}, gerrors.ErrMeshNotStarted
	}
	return m.registry.Resolve(ctx, addr)
}

// Channel returns the cached delivery channel of addr without resolving it
func (m *Mesh) Channel(ctx context.Context, addr address.Address) (*stream.Info, error) {
	if !m.started.Load() {
		return nil, gerrors.ErrMeshNotStarted
	}
	return m.registry.Get(ctx, addr)
}

// Activate activates the hub of addr. A stream hub starts consuming its stream.
func (m *Mesh) Activate(ctx context.Context, addr address.Address) error {
	if !m.started.Load() {
		return gerrors.ErrMeshNotStarted
	}
	return m.hubs.Activate(ctx, addr)
}

// Deactivate deactivates the hub of addr
func (m *Mesh) Deactivate(ctx context.Context, addr address.Address) error {
	if !m.started.Load() {
		return gerrors.ErrMeshNotStarted
	}
	return m.hubs.Deactivate(ctx, addr)
}

// Activity returns the activity of the hub of addr
func (m *Mesh) Activity(ctx context.Context, addr address.Address) (*hosting.StreamActivity, error) {
	if !m.started.Load() {
		return nil, gerrors.ErrMeshNotStarted
	}
	return m.hubs.Activity(ctx, addr)
}

// forget drops the cached channel of the node address when the mesh runs
func (m *Mesh) forget(ctx context.Context, n *node.MeshNode) error {
	if !m.started.Load() {
		return nil
	}
	return m.registry.Unregister(ctx, n.Address())
}
