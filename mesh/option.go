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
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/systemorph/meshweaver/address"
	"github.com/systemorph/meshweaver/catalog"
	"github.com/systemorph/meshweaver/hub"
	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/module"
	"github.com/systemorph/meshweaver/persistence"
	"github.com/systemorph/meshweaver/stream"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(m *Mesh)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(m *Mesh)

// Apply applies the option
func (f OptionFunc) Apply(m *Mesh) {
	f(m)
}

// WithLogger sets the mesh logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(m *Mesh) {
		m.logger = logger
	})
}

// WithIdentity sets the address of the mesh. Addresses hosted on it are routed locally.
// It defaults to mesh/<name>.
func WithIdentity(identity address.Address) Option {
	return OptionFunc(func(m *Mesh) {
		m.identity = identity.Inner()
	})
}

// WithCatalogStore sets the store holding the mesh nodes
func WithCatalogStore(store persistence.Store) Option {
	return OptionFunc(func(m *Mesh) {
		m.catalogStore = store
	})
}

// WithStateStore sets the store holding the durable state of the grains
func WithStateStore(store persistence.Store) Option {
	return OptionFunc(func(m *Mesh) {
		m.stateStore = store
	})
}

// WithCatalogConfig sets the key mapping and storage namespace of the catalog
func WithCatalogConfig(config *catalog.Config) Option {
	return OptionFunc(func(m *Mesh) {
		m.catalogConfig = config
	})
}

// WithStreamProvider adds a stream provider. The mesh closes it on Stop.
func WithStreamProvider(provider stream.Provider) Option {
	return OptionFunc(func(m *Mesh) {
		m.providers.Register(provider)
	})
}

// WithModuleSource sets where modules are loaded from
func WithModuleSource(source module.Source) Option {
	return OptionFunc(func(m *Mesh) {
		m.source = source
	})
}

// WithStaticHub registers a compiled-in hub factory under a startup reference
func WithStaticHub(reference string, factory hub.Factory) Option {
	return OptionFunc(func(m *Mesh) {
		m.statics.Register(reference, factory)
	})
}

// WithMeterProvider sets the OpenTelemetry meter provider of the mesh instruments
func WithMeterProvider(provider otelmetric.MeterProvider) Option {
	return OptionFunc(func(m *Mesh) {
		m.meterProvider = provider
	})
}

// WithAskTimeout bounds every grain call made by the mesh
func WithAskTimeout(timeout time.Duration) Option {
	return OptionFunc(func(m *Mesh) {
		m.askTimeout = timeout
	})
}

// WithPassivationAfter deactivates idle grains after timeout
func WithPassivationAfter(timeout time.Duration) Option {
	return OptionFunc(func(m *Mesh) {
		m.passivationAfter = timeout
	})
}

// WithPassivationDisabled keeps grains active until they are deactivated explicitly
func WithPassivationDisabled() Option {
	return OptionFunc(func(m *Mesh) {
		m.passivationDisabled = true
	})
}
