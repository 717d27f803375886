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

package stream

import (
	"context"
	"sort"

	"go.uber.org/multierr"

	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/internal/xsync"
)

// Providers is the set of stream providers known to a mesh, keyed by name
type Providers struct {
	providers *xsync.Map[string, Provider]
}

// NewProviders creates a Providers holding the given providers
func NewProviders(providers ...Provider) *Providers {
	p := &Providers{providers: xsync.NewMap[string, Provider]()}
	for _, provider := range providers {
		p.Register(provider)
	}
	return p
}

// Register adds or replaces a provider
func (p *Providers) Register(provider Provider) {
	p.providers.Set(provider.Name(), provider)
}

// Get returns the provider registered under name
func (p *Providers) Get(name string) (Provider, error) {
	provider, ok := p.providers.Get(name)
	if !ok {
		return nil, gerrors.NewErrStreamProviderNotFound(name)
	}
	return provider, nil
}

// Names returns the registered provider names in order
func (p *Providers) Names() []string {
	names := p.providers.Keys()
	sort.Strings(names)
	return names
}

// Close closes every provider and forgets them
func (p *Providers) Close(ctx context.Context) error {
	var err error
	for _, provider := range p.providers.Values() {
		err = multierr.Append(err, provider.Close(ctx))
	}
	p.providers.Reset()
	return err
}
