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

// Package module loads the code behind hub configurations.
//
// A Module declares the mesh nodes it serves and the hub factories backing them.
// Modules are obtained through a Loader, each loader holding at most one module for a
// single owner, so that one hub never shares loaded state with another.
package module

import (
	"context"
	"io"
	"maps"
	"slices"

	"github.com/systemorph/meshweaver/hub"
	"github.com/systemorph/meshweaver/node"
)

// BuiltinScheme prefixes locations of modules compiled into the binary.
const BuiltinScheme = "builtin:"

// Module is a unit of deployable hub code.
// A Module may also implement io.Closer; Close is then called when its loader unloads.
type Module interface {
	// Name returns the module name
	Name() string
	// Version returns the semantic version of the module
	Version() string
	// Nodes returns the mesh nodes the module declares, in declaration order
	Nodes() []*node.MeshNode
	// HubFactory returns the factory registered under the startup reference
	HubFactory(reference string) (hub.Factory, bool)
}

// Loader loads one module for one owner.
type Loader interface {
	// Load loads the module found at location. A loader loads at most once.
	Load(ctx context.Context, location string) (Module, error)
	// Unload releases the module. It is safe to call more than once.
	Unload(ctx context.Context) error
}

// Source hands out loaders for the locations it understands.
type Source interface {
	// CanLoad reports whether the source handles location
	CanLoad(location string) bool
	// NewLoader returns a fresh loader
	NewLoader() Loader
}

// Definition is a Module assembled in code.
type Definition struct {
	name      string
	version   string
	nodes     []*node.MeshNode
	factories map[string]hub.Factory
	closer    func() error
}

var (
	_ Module    = (*Definition)(nil)
	_ io.Closer = (*Definition)(nil)
)

// DefinitionOption configures a Definition
type DefinitionOption func(*Definition)

// WithNode declares a mesh node
func WithNode(n *node.MeshNode) DefinitionOption {
	return func(d *Definition) {
		d.nodes = append(d.nodes, n)
	}
}

// WithHub registers the hub factory of a startup reference
func WithHub(reference string, factory hub.Factory) DefinitionOption {
	return func(d *Definition) {
		d.factories[reference] = factory
	}
}

// WithCloser sets the function run when the module is unloaded
func WithCloser(closer func() error) DefinitionOption {
	return func(d *Definition) {
		d.closer = closer
	}
}

// New creates a Definition
func New(name, version string, opts ...DefinitionOption) *Definition {
	d := &Definition{
		name:      name,
		version:   version,
		factories: make(map[string]hub.Factory),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the module name
func (d *Definition) Name() string {
	return d.name
}

// Version returns the module version
func (d *Definition) Version() string {
	return d.version
}

// Nodes returns copies of the declared nodes
func (d *Definition) Nodes() []*node.MeshNode {
	nodes := make([]*node.MeshNode, 0, len(d.nodes))
	for _, n := range d.nodes {
		nodes = append(nodes, n.Clone())
	}
	return nodes
}

// HubFactory returns the factory registered under reference
func (d *Definition) HubFactory(reference string) (hub.Factory, bool) {
	factory, ok := d.factories[reference]
	return factory, ok
}

// References returns the registered startup references, sorted
func (d *Definition) References() []string {
	return slices.Sorted(maps.Keys(d.factories))
}

// Close runs the closer set by WithCloser
func (d *Definition) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}

// closeModule closes m when it implements io.Closer
func closeModule(m Module) error {
	if closer, ok := m.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
