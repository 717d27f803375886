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
	"sync"

	gerrors "github.com/systemorph/meshweaver/errors"
)

// Sources combines several sources. The first source accepting a location loads it.
type Sources []Source

var _ Source = Sources(nil)

// CanLoad reports whether any source accepts location
func (s Sources) CanLoad(location string) bool {
	return s.sourceOf(location) != nil
}

// NewLoader returns a loader delegating to the source accepting the loaded location
func (s Sources) NewLoader() Loader {
	return &sourcesLoader{sources: s}
}

func (s Sources) sourceOf(location string) Source {
	for _, source := range s {
		if source != nil && source.CanLoad(location) {
			return source
		}
	}
	return nil
}

type sourcesLoader struct {
	sources Sources
	mu      sync.Mutex
	loader  Loader
}

func (l *sourcesLoader) Load(ctx context.Context, location string) (Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loader == nil {
		source := l.sources.sourceOf(location)
		if source == nil {
			return nil, gerrors.NewModuleLoadError(location, gerrors.ErrModuleSourceNotFound)
		}
		l.loader = source.NewLoader()
	}
	return l.loader.Load(ctx, location)
}

func (l *sourcesLoader) Unload(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loader == nil {
		return nil
	}
	return l.loader.Unload(ctx)
}
