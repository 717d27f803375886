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

package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/goleak"

	"github.com/systemorph/meshweaver/actor"
	"github.com/systemorph/meshweaver/address"
	"github.com/systemorph/meshweaver/catalog"
	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/node"
	"github.com/systemorph/meshweaver/persistence"
	"github.com/systemorph/meshweaver/stream"
)

// countingStore counts the writes reaching the wrapped store
type countingStore struct {
	persistence.Store
	puts atomic.Int32
}

func (s *countingStore) Put(ctx context.Context, key string, value []byte) error {
	s.puts.Inc()
	return s.Store.Put(ctx, key, value)
}

type fixture struct {
	system  *actor.System
	catalog *catalog.Catalog
	client  *Client
	state   *countingStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	state := &countingStore{Store: persistence.NewMemoryStore()}
	system, err := actor.NewSystem("registry-test",
		actor.WithLogger(log.DiscardLogger),
		actor.WithStateStore(state),
		actor.WithAskTimeout(time.Second))
	require.NoError(t, err)

	c, err := catalog.New(persistence.NewMemoryStore(), nil, catalog.WithLogger(log.DiscardLogger))
	require.NoError(t, err)

	client := NewClient(system, c)
	require.NoError(t, client.Register())
	require.NoError(t, system.Start(context.Background()))
	return &fixture{system: system, catalog: c, client: client, state: state}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("With stream node resolved and cached", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("app", "1")
		require.NoError(t, f.catalog.UpdateNode(ctx, node.New("app", "1", node.WithStream("memory", "ns1"))))

		info, err := f.client.Get(ctx, addr)
		require.NoError(t, err)
		assert.Nil(t, info)

		first, err := f.client.Resolve(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, stream.Info{AddressType: "app", AddressID: "1", Provider: "memory", Namespace: "ns1"}, first)
		assert.EqualValues(t, 1, f.client.CatalogLookups())

		second, err := f.client.Resolve(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.EqualValues(t, 1, f.client.CatalogLookups())

		cached, err := f.client.Get(ctx, addr)
		require.NoError(t, err)
		require.NotNil(t, cached)
		assert.Equal(t, first, *cached)
		require.NoError(t, f.system.Stop(ctx))
	})
	t.Run("With catalog miss falling back to direct delivery", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("app", "2")

		info, err := f.client.Resolve(ctx, addr)
		require.NoError(t, err)
		assert.True(t, info.IsDirect())
		assert.Equal(t, stream.DirectInfo(addr), info)

		again, err := f.client.Resolve(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, info, again)
		assert.EqualValues(t, 1, f.client.CatalogLookups())
		require.NoError(t, f.system.Stop(ctx))
	})
	t.Run("With resolution surviving passivation", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("app", "3")

		_, err := f.client.Resolve(ctx, addr)
		require.NoError(t, err)

		identity, err := actor.NewGrainIdentity(GrainKind, addr.String())
		require.NoError(t, err)
		require.NoError(t, f.system.DeactivateGrain(ctx, identity))

		info, err := f.client.Get(ctx, addr)
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.True(t, info.IsDirect())

		_, err = f.client.Resolve(ctx, addr)
		require.NoError(t, err)
		assert.EqualValues(t, 1, f.client.CatalogLookups())
		require.NoError(t, f.system.Stop(ctx))
	})
	t.Run("With register stream skipping equal writes", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("app", "4")
		info := stream.Info{AddressType: "app", AddressID: "4", Provider: "memory", Namespace: "listeners"}

		require.NoError(t, f.client.RegisterStream(ctx, addr, info))
		puts := f.state.puts.Load()
		require.NoError(t, f.client.RegisterStream(ctx, addr, info))
		assert.Equal(t, puts, f.state.puts.Load())

		resolved, err := f.client.Resolve(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, info, resolved)
		assert.Zero(t, f.client.CatalogLookups())

		changed := info
		changed.Namespace = "other"
		require.NoError(t, f.client.RegisterStream(ctx, addr, changed))
		assert.Equal(t, puts+1, f.state.puts.Load())
		require.NoError(t, f.system.Stop(ctx))
	})
	t.Run("With unregister", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("app", "5")
		require.NoError(t, f.client.RegisterStream(ctx, addr, stream.Info{AddressType: "app", AddressID: "5", Provider: "memory", Namespace: "n"}))

		require.NoError(t, f.client.Unregister(ctx, addr))
		identity, err := actor.NewGrainIdentity(GrainKind, addr.String())
		require.NoError(t, err)
		require.Eventually(t, func() bool { return !f.system.IsActive(identity) }, time.Second, 10*time.Millisecond)

		info, err := f.client.Get(ctx, addr)
		require.NoError(t, err)
		assert.Nil(t, info)

		_, err = f.state.Get(ctx, SlotKey(addr))
		assert.ErrorIs(t, err, persistence.ErrKeyNotFound)
		require.NoError(t, f.system.Stop(ctx))
	})
	t.Run("With concurrent resolutions", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("app", "6")
		require.NoError(t, f.catalog.UpdateNode(ctx, node.New("app", "6", node.WithStream("memory", "ns6"))))

		var wg sync.WaitGroup
		results := make([]stream.Info, 20)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				info, err := f.client.Resolve(ctx, addr)
				assert.NoError(t, err)
				results[i] = info
			}()
		}
		wg.Wait()

		for _, info := range results {
			assert.Equal(t, results[0], info)
		}
		assert.EqualValues(t, 1, f.client.CatalogLookups())
		require.NoError(t, f.system.Stop(ctx))
	})
	t.Run("With catalog failure not cached", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		failing := &failingLookup{err: assert.AnError}
		f.client.catalog = failing
		addr := address.New("app", "7")

		_, err := f.client.Resolve(ctx, addr)
		assert.ErrorIs(t, err, assert.AnError)

		info, err := f.client.Get(ctx, addr)
		require.NoError(t, err)
		assert.Nil(t, info)
		require.NoError(t, f.system.Stop(ctx))
	})
	t.Run("With invalid address", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		_, err := f.client.Resolve(ctx, address.Address{})
		assert.Error(t, err)
		require.NoError(t, f.system.Stop(ctx))
	})
}

type failingLookup struct {
	err error
}

func (l *failingLookup) GetNode(context.Context, address.Address) (*node.MeshNode, error) {
	return nil, l.err
}
