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

package module

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/internal/xsync"
)

// Constructor builds a fresh module instance.
type Constructor func() Module

// Registry is a Source of modules compiled into the binary.
// Locations are either builtin:<name> or the bare name.
// Every loader receives its own module instance.
type Registry struct {
	constructors *xsync.Map[string, Constructor]
}

var _ Source = (*Registry)(nil)

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{constructors: xsync.NewMap[string, Constructor]()}
}

// Register binds a constructor to a module name
func (r *Registry) Register(name string, constructor Constructor) {
	r.constructors.Set(name, constructor)
}

// Names returns the registered module names, sorted
func (r *Registry) Names() []string {
	names := r.constructors.Keys()
	slices.Sort(names)
	return names
}

// CanLoad reports whether a module is registered under location
func (r *Registry) CanLoad(location string) bool {
	_, ok := r.constructors.Get(strings.TrimPrefix(location, BuiltinScheme))
	return ok
}

// NewLoader returns a loader over the registry
func (r *Registry) NewLoader() Loader {
	return &registryLoader{registry: r}
}

type registryLoader struct {
	registry *Registry
	mu       sync.Mutex
	module   Module
	loaded   bool
}

func (l *registryLoader) Load(_ context.Context, location string) (Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return nil, gerrors.NewModuleLoadError(location, fmt.Errorf("loader already used"))
	}

	constructor, ok := l.registry.constructors.Get(strings.TrimPrefix(location, BuiltinScheme))
	if !ok {
		return nil, gerrors.NewModuleLoadError(location, gerrors.ErrModuleSourceNotFound)
	}

	m := constructor()
	if m == nil {
		return nil, gerrors.NewModuleLoadError(location, fmt.Errorf("constructor returned no module"))
	}
	l.module = m
	l.loaded = true
	return m, nil
}

func (l *registryLoader) Unload(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.module == nil {
		return nil
	}
	m := l.module
	l.module = nil
	return closeModule(m)
}
