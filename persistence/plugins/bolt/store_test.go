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

package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemorph/meshweaver/persistence"
	"github.com/systemorph/meshweaver/persistence/storetest"
)

func TestStore(t *testing.T) {
	t.Run("With store contract", func(t *testing.T) {
		store, err := Open(filepath.Join(t.TempDir(), "mesh.db"))
		require.NoError(t, err)
		storetest.Run(t, store)
	})
	t.Run("With data surviving a reopen", func(t *testing.T) {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "nested", "mesh.db")

		store, err := Open(path, WithBucket("catalog"))
		require.NoError(t, err)
		assert.Equal(t, path, store.Path())
		require.NoError(t, store.Put(ctx, "catalog/app/1", []byte("node")))
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		_, err = store.Get(ctx, "catalog/app/1")
		assert.ErrorIs(t, err, persistence.ErrStoreClosed)

		reopened, err := Open(path, WithBucket("catalog"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = reopened.Close() })

		actual, err := reopened.Get(ctx, "catalog/app/1")
		require.NoError(t, err)
		assert.Equal(t, []byte("node"), actual)
	})
}
