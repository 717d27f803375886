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
	"path/filepath"
	"plugin"
	"sync"

	gerrors "github.com/systemorph/meshweaver/errors"
)

// PluginSymbol is the symbol a plugin module exports: a func() module.Module.
const PluginSymbol = "MeshModule"

// PluginSource loads modules from Go plugin files (.so).
//
// The Go runtime never unloads a plugin: Unload closes the module and drops every
// reference to it but the code stays mapped in the process.
type PluginSource struct{}

var _ Source = (*PluginSource)(nil)

// NewPluginSource creates a PluginSource
func NewPluginSource() *PluginSource {
	return &PluginSource{}
}

// CanLoad reports whether location is a plugin file
func (s *PluginSource) CanLoad(location string) bool {
	return filepath.Ext(location) == ".so"
}

// NewLoader returns a plugin loader
func (s *PluginSource) NewLoader() Loader {
	return &pluginLoader{}
}

type pluginLoader struct {
	mu     sync.Mutex
	module Module
	loaded bool
}

func (l *pluginLoader) Load(_ context.Context, location string) (Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return nil, gerrors.NewModuleLoadError(location, fmt.Errorf("loader already used"))
	}

	p, err := plugin.Open(location)
	if err != nil {
		return nil, gerrors.NewModuleLoadError(location, err)
	}

	symbol, err := p.Lookup(PluginSymbol)
	if err != nil {
		return nil, gerrors.NewModuleLoadError(location, err)
	}

	var constructor func() Module
	switch fn := symbol.(type) {
	case func() Module:
		constructor = fn
	case *func() Module:
		constructor = *fn
	default:
		return nil, gerrors.NewModuleLoadError(location, fmt.Errorf("symbol %s has type %T", PluginSymbol, symbol))
	}

	m := constructor()
	if m == nil {
		return nil, gerrors.NewModuleLoadError(location, fmt.Errorf("symbol %s returned no module", PluginSymbol))
	}
	l.module = m
	l.loaded = true
	return m, nil
}

func (l *pluginLoader) Unload(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.module == nil {
		return nil
	}
	m := l.module
	l.module = nil
	return closeModule(m)
}
