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

// Package storetest runs the behavioural checks every persistence.Store must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemorph/meshweaver/persistence"
)

// Run exercises store against the persistence.Store contract.
// The store is closed when the checks are over.
func Run(t *testing.T, store persistence.Store) {
	t.Helper()
	ctx := context.Background()
	t.Cleanup(func() { _ = store.Close() })

	t.Run("With missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "storetest/missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, persistence.ErrKeyNotFound)
	})
	t.Run("With put and get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "storetest/a", []byte("alpha")))
		actual, err := store.Get(ctx, "storetest/a")
		require.NoError(t, err)
		assert.Equal(t, []byte("alpha"), actual)
	})
	t.Run("With overwrite", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "storetest/b", []byte("one")))
		require.NoError(t, store.Put(ctx, "storetest/b", []byte("two")))
		actual, err := store.Get(ctx, "storetest/b")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), actual)
	})
	t.Run("With delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "storetest/c", []byte("gone")))
		require.NoError(t, store.Delete(ctx, "storetest/c"))
		_, err := store.Get(ctx, "storetest/c")
		assert.ErrorIs(t, err, persistence.ErrKeyNotFound)
		require.NoError(t, store.Delete(ctx, "storetest/c"))
	})
	t.Run("With keys by prefix", func(t *testing.T) {
		for _, key := range []string{"prefix/z", "prefix/a", "prefix/m", "other/a"} {
			require.NoError(t, store.Put(ctx, "storetest/"+key, []byte(key)))
		}
		keys, err := store.Keys(ctx, "storetest/prefix/")
		require.NoError(t, err)
		assert.Equal(t, []string{"storetest/prefix/a", "storetest/prefix/m", "storetest/prefix/z"}, keys)

		keys, err = store.Keys(ctx, "storetest/none/")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
	t.Run("With concurrent writers", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := range 10 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("storetest/concurrent/%02d", i)
				assert.NoError(t, store.Put(ctx, key, []byte(key)))
			}(i)
		}
		wg.Wait()

		keys, err := store.Keys(ctx, "storetest/concurrent/")
		require.NoError(t, err)
		assert.Len(t, keys, 10)
	})
	t.Run("With cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.Error(t, store.Put(cancelled, "storetest/cancelled", []byte("x")))
	})
}
