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

package hub

import (
	"sort"

	"github.com/systemorph/meshweaver/internal/xsync"
)

// Registry holds the hub factories compiled into the binary, keyed by startup reference.
// It serves the nodes whose instantiation kind is static.
type Registry struct {
	factories *xsync.Map[string, Factory]
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{factories: xsync.NewMap[string, Factory]()}
}

// Register adds or replaces the factory of a startup reference
func (r *Registry) Register(reference string, factory Factory) {
	r.factories.Set(reference, factory)
}

// Lookup returns the factory registered under reference
func (r *Registry) Lookup(reference string) (Factory, bool) {
	return r.factories.Get(reference)
}

// References returns the registered startup references in order
func (r *Registry) References() []string {
	refs := r.factories.Keys()
	sort.Strings(refs)
	return refs
}
