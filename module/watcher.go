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
	"path/filepath"
	"slices"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/atomic"

	"github.com/systemorph/meshweaver/log"
)

// DefaultDebounce is how long the Watcher waits for a file to settle before installing it.
const DefaultDebounce = 250 * time.Millisecond

// InstallFunc installs the module found at location.
type InstallFunc func(ctx context.Context, location string) error

// Watcher installs modules dropped into a directory.
// Bursts of events for the same file collapse into a single install.
type Watcher struct {
	dir        string
	install    InstallFunc
	debounce   time.Duration
	extensions mapset.Set[string]
	logger     log.Logger

	watcher *fsnotify.Watcher
	pending mapset.Set[string]
	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithDebounce sets the settle delay
func WithDebounce(debounce time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = debounce
	}
}

// WithExtensions sets the file extensions treated as modules. Defaults to .so.
func WithExtensions(extensions ...string) WatcherOption {
	return func(w *Watcher) {
		w.extensions = mapset.NewSet(extensions...)
	}
}

// WithWatcherLogger sets the logger
func WithWatcherLogger(logger log.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a Watcher over dir
func NewWatcher(dir string, install InstallFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:        dir,
		install:    install,
		debounce:   DefaultDebounce,
		extensions: mapset.NewSet(".so"),
		logger:     log.DefaultLogger,
		pending:    mapset.NewSet[string](),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Files already in the directory are not installed.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.started.Store(false)
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		w.started.Store(false)
		return err
	}

	w.watcher = watcher
	ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))
	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Infof("watching module directory=(%s)", w.dir)
	return nil
}

// Stop stops watching and waits for in-flight installs.
func (w *Watcher) Stop() error {
	if !w.started.CompareAndSwap(true, false) {
		return nil
	}
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.extensions.Contains(filepath.Ext(event.Name)) {
				continue
			}
			w.pending.Add(event.Name)
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("module directory=(%s) watch error: %v", w.dir, err)
		case <-timer.C:
			w.flush(ctx)
		}
	}
}

// flush installs every settled file in name order.
func (w *Watcher) flush(ctx context.Context) {
	locations := w.pending.ToSlice()
	w.pending.Clear()
	slices.Sort(locations)

	for _, location := range locations {
		if err := w.install(ctx, location); err != nil {
			w.logger.Errorf("failed to install module=(%s): %v", location, err)
			continue
		}
		w.logger.Infof("module=(%s) installed", location)
	}
}
