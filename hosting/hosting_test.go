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

package hosting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/systemorph/meshweaver/actor"
	"github.com/systemorph/meshweaver/address"
	"github.com/systemorph/meshweaver/catalog"
	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/hub"
	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/module"
	"github.com/systemorph/meshweaver/node"
	"github.com/systemorph/meshweaver/persistence"
	"github.com/systemorph/meshweaver/stream"
)

const stringType = "google.protobuf.StringValue"

// recordingHub keeps the payloads it receives. "fail" returns an error and
// "panic" panics.
type recordingHub struct {
	mu       sync.Mutex
	payloads []string
	disposed atomic.Int32
}

func (h *recordingHub) DeliverMessage(_ context.Context, delivery *hub.Delivery) error {
	payload := delivery.Message.(*wrapperspb.StringValue).GetValue()
	switch payload {
	case "fail":
		return errors.New("rejected")
	case "panic":
		panic("hub exploded")
	}
	h.mu.Lock()
	h.payloads = append(h.payloads, payload)
	h.mu.Unlock()
	return nil
}

func (h *recordingHub) Dispose(context.Context) error {
	h.disposed.Inc()
	return nil
}

func (h *recordingHub) received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.payloads...)
}

// failingStore fails every write while fail is set
type failingStore struct {
	persistence.Store
	fail atomic.Bool
}

func (s *failingStore) Put(ctx context.Context, key string, value []byte) error {
	if s.fail.Load() {
		return errors.New("disk full")
	}
	return s.Store.Put(ctx, key, value)
}

type fixture struct {
	system   *actor.System
	catalog  *catalog.Catalog
	client   *Client
	provider *stream.MemoryProvider
	state    *failingStore

	hubs    sync.Map
	loads   atomic.Int32
	unloads atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		state:    &failingStore{Store: persistence.NewMemoryStore()},
		provider: stream.NewMemoryProvider(stream.WithLogger(log.DiscardLogger)),
	}

	system, err := actor.NewSystem("hosting-test",
		actor.WithLogger(log.DiscardLogger),
		actor.WithStateStore(f.state),
		actor.WithAskTimeout(2*time.Second))
	require.NoError(t, err)
	f.system = system

	f.catalog, err = catalog.New(persistence.NewMemoryStore(), nil, catalog.WithLogger(log.DiscardLogger))
	require.NoError(t, err)

	modules := module.NewRegistry()
	modules.Register("pricing", func() module.Module {
		f.loads.Inc()
		return module.New("pricing", "1.0.0",
			module.WithHub("pricing", f.factory),
			module.WithCloser(func() error {
				f.unloads.Inc()
				return nil
			}))
	})

	statics := hub.NewRegistry()
	statics.Register("echo", f.factory)

	f.client = NewClient(system, f.catalog,
		WithModuleSource(modules),
		WithStaticHubs(statics),
		WithProviders(stream.NewProviders(f.provider)),
		WithLogger(log.DiscardLogger),
		WithResubscribeDelay(50*time.Millisecond))
	require.NoError(t, f.client.Register())
	require.NoError(t, system.Start(context.Background()))
	return f
}

func (f *fixture) factory(_ context.Context, config *hub.Config) (hub.Hub, error) {
	h := &recordingHub{}
	f.hubs.Store(config.Address.String(), h)
	return h, nil
}

func (f *fixture) hub(t *testing.T, addr address.Address) *recordingHub {
	t.Helper()
	h, ok := f.hubs.Load(addr.String())
	require.True(t, ok)
	return h.(*recordingHub)
}

func (f *fixture) stop(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.system.Stop(ctx))
	require.NoError(t, f.provider.Close(ctx))
}

func deliver(t *testing.T, f *fixture, addr address.Address, payload string) *hub.Result {
	t.Helper()
	result, err := f.client.Deliver(context.Background(), hub.NewDelivery(addr, wrapperspb.String(payload)))
	require.NoError(t, err)
	return result
}

func TestHubGrain(t *testing.T) {
	ctx := context.Background()

	t.Run("With deliveries counted per message type", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("pricing", "1")
		require.NoError(t, f.catalog.UpdateNode(ctx, node.New("pricing", "", node.WithModule("builtin:pricing", "pricing"))))

		for _, payload := range []string{"a", "b", "c"} {
			result := deliver(t, f, addr, payload)
			assert.True(t, result.IsForwarded())
		}
		assert.Equal(t, []string{"a", "b", "c"}, f.hub(t, addr).received())

		activity, err := f.client.Activity(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{stringType: 3}, activity.EventCounter)
		assert.Zero(t, activity.ErrorCounter)
		assert.False(t, activity.IsDeactivated)
		assert.Equal(t, 3, activity.Delivered())
		f.stop(t)
	})
	t.Run("With hub errors counted and reported", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("echo", "1")
		require.NoError(t, f.catalog.UpdateNode(ctx, node.New("echo", "", node.WithStatic("echo"))))

		result := deliver(t, f, addr, "fail")
		assert.True(t, result.IsFailed())
		assert.Equal(t, "rejected", result.Reason)

		result = deliver(t, f, addr, "panic")
		assert.True(t, result.IsFailed())
		assert.Contains(t, result.Reason, "hub exploded")

		result = deliver(t, f, addr, "ok")
		assert.True(t, result.IsForwarded())

		activity, err := f.client.Activity(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, 2, activity.ErrorCounter)
		assert.Equal(t, 3, activity.EventCounter[stringType])
		f.stop(t)
	})
	t.Run("With counters reset and token kept across activations", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("echo", "2")
		require.NoError(t, f.catalog.UpdateNode(ctx, node.New("echo", "", node.WithStatic("echo"))))

		deliver(t, f, addr, "a")
		require.NoError(t, f.client.Deactivate(ctx, addr))
		assert.False(t, f.client.IsActive(addr))

		slot := persistence.NewSlot[StreamActivity](f.state, SlotKey(addr))
		persisted, found, err := slot.Read(ctx)
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, persisted.IsDeactivated)
		assert.Equal(t, 1, persisted.EventCounter[stringType])

		persisted.Token = 42
		require.NoError(t, slot.Write(ctx, persisted))

		require.NoError(t, f.client.Activate(ctx, addr))
		activity, err := f.client.Activity(ctx, addr)
		require.NoError(t, err)
		assert.Empty(t, activity.EventCounter)
		assert.False(t, activity.IsDeactivated)
		assert.EqualValues(t, 42, activity.Token)
		f.stop(t)
	})
	t.Run("With missing node reported as missing configuration", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("app", "2")

		_, err := f.client.Deliver(ctx, hub.NewDelivery(addr, wrapperspb.String("a")))
		require.Error(t, err)
		assert.EqualError(t, err, "No hub configuration is specified for app/2")
		assert.True(t, gerrors.IsConfigurationError(err))
		assert.ErrorIs(t, err, gerrors.ErrGrainActivationFailure)
		assert.False(t, f.client.IsActive(addr))
		f.stop(t)
	})
	t.Run("With unknown startup reference", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("pricing", "9")
		require.NoError(t, f.catalog.UpdateNode(ctx, node.New("pricing", "", node.WithModule("builtin:pricing", "quotes"))))

		_, err := f.client.Deliver(ctx, hub.NewDelivery(addr, wrapperspb.String("a")))
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrStartupNotFound)
		assert.True(t, gerrors.IsConfigurationError(err))
		assert.EqualValues(t, 1, f.loads.Load())
		assert.EqualValues(t, 1, f.unloads.Load())
		f.stop(t)
	})
	t.Run("With unloadable module", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("quotes", "1")
		require.NoError(t, f.catalog.UpdateNode(ctx, node.New("quotes", "", node.WithModule("builtin:quotes", "quotes"))))

		err := f.client.Activate(ctx, addr)
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrModuleLoad)
		f.stop(t)
	})
	t.Run("With a single module load under concurrent first deliveries", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("pricing", "2")
		require.NoError(t, f.catalog.UpdateNode(ctx, node.New("pricing", "", node.WithModule("builtin:pricing", "pricing"))))

		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := f.client.Deliver(ctx, hub.NewDelivery(addr, wrapperspb.String("x")))
				assert.NoError(t, err)
				assert.True(t, result.IsForwarded())
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, f.loads.Load())
		assert.Len(t, f.hub(t, addr).received(), 16)
		f.stop(t)
	})
	t.Run("With module unloaded once on deactivation", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("pricing", "3")
		require.NoError(t, f.catalog.UpdateNode(ctx, node.New("pricing", "", node.WithModule("builtin:pricing", "pricing"))))

		deliver(t, f, addr, "a")
		h := f.hub(t, addr)
		require.NoError(t, f.client.Deactivate(ctx, addr))
		require.NoError(t, f.client.Deactivate(ctx, addr))

		assert.EqualValues(t, 1, f.unloads.Load())
		assert.EqualValues(t, 1, h.disposed.Load())

		deliver(t, f, addr, "b")
		assert.EqualValues(t, 2, f.loads.Load())
		f.stop(t)
		assert.EqualValues(t, 2, f.unloads.Load())
	})
	t.Run("With module unloaded once under concurrent deactivations", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("pricing", "4")
		require.NoError(t, f.catalog.UpdateNode(ctx, node.New("pricing", "", node.WithModule("builtin:pricing", "pricing"))))

		for round := 1; round <= 20; round++ {
			deliver(t, f, addr, "a")
			h := f.hub(t, addr)

			var wg sync.WaitGroup
			for range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, f.client.Deactivate(ctx, addr))
				}()
			}
			wg.Wait()

			assert.EqualValues(t, round, f.loads.Load())
			assert.EqualValues(t, round, f.unloads.Load())
			assert.EqualValues(t, 1, h.disposed.Load())
		}
		f.stop(t)
	})
	t.Run("With persistence failure surfaced to the caller", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("echo", "3")
		require.NoError(t, f.catalog.UpdateNode(ctx, node.New("echo", "", node.WithStatic("echo"))))
		require.NoError(t, f.client.Activate(ctx, addr))

		f.state.fail.Store(true)
		_, err := f.client.Deliver(ctx, hub.NewDelivery(addr, wrapperspb.String("a")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.Empty(t, f.hub(t, addr).received())

		f.state.fail.Store(false)
		activity, err := f.client.Activity(ctx, addr)
		require.NoError(t, err)
		assert.Empty(t, activity.EventCounter)
		f.stop(t)
	})
	t.Run("With stream hub consuming its namespace", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("feed", "1")
		require.NoError(t, f.catalog.UpdateNode(ctx, node.New("feed", "",
			node.WithStatic("echo"),
			node.WithStream(stream.MemoryProviderName, "feed"))))

		require.NoError(t, f.client.Activate(ctx, addr))
		for _, payload := range []string{"a", "b"} {
			_, err := f.provider.Publish(ctx, "feed", hub.NewDelivery(addr, wrapperspb.String(payload)))
			require.NoError(t, err)
		}

		h := f.hub(t, addr)
		require.Eventually(t, func() bool { return len(h.received()) == 2 }, 2*time.Second, 10*time.Millisecond)
		require.Eventually(t, func() bool {
			activity, err := f.client.Activity(ctx, addr)
			return err == nil && activity.Token == 2
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, f.client.Deactivate(ctx, addr))
		_, err := f.provider.Publish(ctx, "feed", hub.NewDelivery(addr, wrapperspb.String("c")))
		require.NoError(t, err)

		require.NoError(t, f.client.Activate(ctx, addr))
		resumed := f.hub(t, addr)
		require.Eventually(t, func() bool { return len(resumed.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"c"}, resumed.received())
		f.stop(t)
	})
	t.Run("With stream delivery redelivered after a persistence failure", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("ticks", "1")
		require.NoError(t, f.catalog.UpdateNode(ctx, node.New("ticks", "",
			node.WithStatic("echo"),
			node.WithStream(stream.MemoryProviderName, "ticks"))))
		require.NoError(t, f.client.Activate(ctx, addr))
		h := f.hub(t, addr)

		f.state.fail.Store(true)
		_, err := f.provider.Publish(ctx, "ticks", hub.NewDelivery(addr, wrapperspb.String("a")))
		require.NoError(t, err)
		_, err = f.provider.Publish(ctx, "ticks", hub.NewDelivery(addr, wrapperspb.String("b")))
		require.NoError(t, err)

		time.Sleep(200 * time.Millisecond)
		assert.Empty(t, h.received())

		f.state.fail.Store(false)
		require.Eventually(t, func() bool { return len(h.received()) == 2 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"a", "b"}, h.received())
		require.Eventually(t, func() bool {
			activity, err := f.client.Activity(ctx, addr)
			return err == nil && activity.Token == 2 && activity.Delivered() == 2
		}, 2*time.Second, 10*time.Millisecond)
		f.stop(t)
	})
	t.Run("With stream node on an unknown provider", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("feed", "2")
		require.NoError(t, f.catalog.UpdateNode(ctx, node.New("feed", "",
			node.WithStatic("echo"),
			node.WithStream("kafka", "feed"))))

		err := f.client.Activate(ctx, addr)
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrStreamProviderNotFound)
		assert.EqualValues(t, 1, f.hub(t, addr).disposed.Load())
		f.stop(t)
	})
	t.Run("With invalid delivery", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		_, err := f.client.Deliver(ctx, &hub.Delivery{Target: address.New("echo", "1")})
		assert.ErrorIs(t, err, gerrors.ErrInvalidMessage)

		_, err = f.client.Deliver(ctx, hub.NewDelivery(address.Address{}, wrapperspb.String("a")))
		assert.ErrorIs(t, err, gerrors.ErrInvalidAddress)
		f.stop(t)
	})
}
