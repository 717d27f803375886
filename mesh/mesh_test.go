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

package mesh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/systemorph/meshweaver/address"
	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/hub"
	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/module"
	"github.com/systemorph/meshweaver/node"
	"github.com/systemorph/meshweaver/stream"
)

type inbox struct {
	mu       sync.Mutex
	payloads map[string][]string
}

func newInbox() *inbox {
	return &inbox{payloads: make(map[string][]string)}
}

func (i *inbox) factory(_ context.Context, config *hub.Config) (hub.Hub, error) {
	return &inboxHub{inbox: i, address: config.Address.String()}, nil
}

func (i *inbox) received(addr string) []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.payloads[addr]...)
}

type inboxHub struct {
	inbox   *inbox
	address string
}

func (h *inboxHub) DeliverMessage(_ context.Context, delivery *hub.Delivery) error {
	h.inbox.mu.Lock()
	defer h.inbox.mu.Unlock()
	h.inbox.payloads[h.address] = append(h.inbox.payloads[h.address], delivery.Message.(*wrapperspb.StringValue).GetValue())
	return nil
}

func (h *inboxHub) Dispose(context.Context) error {
	return nil
}

type fixture struct {
	mesh     *Mesh
	provider *stream.MemoryProvider
	inbox    *inbox
	loads    atomic.Int32
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		provider: stream.NewMemoryProvider(stream.WithLogger(log.DiscardLogger)),
		inbox:    newInbox(),
	}

	modules := module.NewRegistry()
	modules.Register("pricing", func() module.Module {
		f.loads.Inc()
		return module.New("pricing", "1.0.0",
			module.WithNode(node.New("pricing", "", node.WithModule("", "pricing"))),
			module.WithHub("pricing", f.inbox.factory))
	})

	opts = append([]Option{
		WithLogger(log.DiscardLogger),
		WithStreamProvider(f.provider),
		WithModuleSource(modules),
		WithStaticHub("inbox", f.inbox.factory),
		WithAskTimeout(2 * time.Second),
	}, opts...)

	m, err := New("test", opts...)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	f.mesh = m
	return f
}

func TestMesh(t *testing.T) {
	ctx := context.Background()

	t.Run("With stream node receiving deliveries on its stream", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("app", "1")
		require.NoError(t, f.mesh.UpdateNode(ctx, node.New("app", "1", node.WithStream(stream.MemoryProviderName, "ns1"))))

		result, err := f.mesh.Send(ctx, addr, wrapperspb.String("hello"))
		require.NoError(t, err)
		assert.True(t, result.IsForwarded())
		assert.EqualValues(t, 1, f.provider.LastSequence("ns1"))

		info, err := f.mesh.Channel(ctx, addr)
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, stream.Info{AddressType: "app", AddressID: "1", Provider: stream.MemoryProviderName, Namespace: "ns1"}, *info)
		require.NoError(t, f.mesh.Stop(ctx))
	})
	t.Run("With stream node declared by its provider only", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("app", "1")
		require.NoError(t, f.mesh.UpdateNode(ctx, &node.MeshNode{
			Key:            "app/1",
			AddressType:    "app",
			AddressID:      "1",
			StreamProvider: stream.MemoryProviderName,
			Namespace:      "ns1",
		}))

		stored, err := f.mesh.GetNode(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, node.RoutingKindStream, stored.RoutingKind)

		result, err := f.mesh.Send(ctx, addr, wrapperspb.String("hello"))
		require.NoError(t, err)
		assert.True(t, result.IsForwarded())
		assert.EqualValues(t, 1, f.provider.LastSequence("ns1"))
		require.NoError(t, f.mesh.Stop(ctx))
	})
	t.Run("With hub consuming a stream its node routes to without a routing kind", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("feed", "2")
		require.NoError(t, f.mesh.UpdateNode(ctx, &node.MeshNode{
			Key:               "feed",
			AddressType:       "feed",
			StreamProvider:    stream.MemoryProviderName,
			Namespace:         "feed-2",
			StartupReference:  "inbox",
			InstantiationKind: node.InstantiationKindStatic,
		}))
		require.NoError(t, f.mesh.Activate(ctx, addr))

		result, err := f.mesh.Send(ctx, addr, wrapperspb.String("a"))
		require.NoError(t, err)
		assert.True(t, result.IsForwarded())
		require.Eventually(t, func() bool { return len(f.inbox.received("feed/2")) == 1 }, 2*time.Second, 10*time.Millisecond)

		activity, err := f.mesh.Activity(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, 1, activity.Delivered())
		assert.EqualValues(t, 1, activity.Token)
		require.NoError(t, f.mesh.Stop(ctx))
	})
	t.Run("With unconfigured address failing with a diagnostic reason", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)

		result, err := f.mesh.Send(ctx, address.New("app", "2"), wrapperspb.String("hello"))
		require.NoError(t, err)
		assert.True(t, result.IsFailed())
		assert.Equal(t, "No hub configuration is specified for app/2", result.Reason)

		info, err := f.mesh.Channel(ctx, address.New("app", "2"))
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.True(t, info.IsDirect())
		require.NoError(t, f.mesh.Stop(ctx))
	})
	t.Run("With static hub served directly", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("orders", "7")
		require.NoError(t, f.mesh.UpdateNode(ctx, node.New("orders", "", node.WithStatic("inbox"))))

		for _, payload := range []string{"a", "b"} {
			result, err := f.mesh.Send(ctx, addr, wrapperspb.String(payload))
			require.NoError(t, err)
			assert.True(t, result.IsForwarded())
		}
		assert.Equal(t, []string{"a", "b"}, f.inbox.received("orders/7"))

		activity, err := f.mesh.Activity(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, 2, activity.Delivered())

		require.NoError(t, f.mesh.Deactivate(ctx, addr))
		activity, err = f.mesh.Activity(ctx, addr)
		require.NoError(t, err)
		assert.Zero(t, activity.Delivered())
		require.NoError(t, f.mesh.Stop(ctx))
	})
	t.Run("With stream hub consuming what is routed to it", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("feed", "1")
		require.NoError(t, f.mesh.UpdateNode(ctx, node.New("feed", "",
			node.WithStatic("inbox"),
			node.WithStream(stream.MemoryProviderName, "feed"))))
		require.NoError(t, f.mesh.Activate(ctx, addr))

		for _, payload := range []string{"a", "b", "c"} {
			result, err := f.mesh.Send(ctx, addr, wrapperspb.String(payload))
			require.NoError(t, err)
			assert.True(t, result.IsForwarded())
		}
		require.Eventually(t, func() bool { return len(f.inbox.received("feed/1")) == 3 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"a", "b", "c"}, f.inbox.received("feed/1"))
		require.NoError(t, f.mesh.Stop(ctx))
	})
	t.Run("With installed module serving its nodes", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)

		installed, err := f.mesh.InstallModule(ctx, "builtin:pricing")
		require.NoError(t, err)
		require.Len(t, installed, 1)
		assert.Equal(t, "builtin:pricing", installed[0].ModuleLocation)

		result, err := f.mesh.Send(ctx, address.New("pricing", "eur"), wrapperspb.String("quote"))
		require.NoError(t, err)
		assert.True(t, result.IsForwarded())
		assert.Equal(t, []string{"quote"}, f.inbox.received("pricing/eur"))
		assert.EqualValues(t, 2, f.loads.Load())
		require.NoError(t, f.mesh.Stop(ctx))
	})
	t.Run("With node update dropping the cached channel", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("app", "3")

		info, err := f.mesh.Resolve(ctx, addr)
		require.NoError(t, err)
		assert.True(t, info.IsDirect())

		require.NoError(t, f.mesh.UpdateNode(ctx, node.New("app", "3", node.WithStream(stream.MemoryProviderName, "ns3"))))
		info, err = f.mesh.Resolve(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, "ns3", info.Namespace)

		require.NoError(t, f.mesh.DeleteNode(ctx, "app/3"))
		_, err = f.mesh.GetNode(ctx, addr)
		assert.ErrorIs(t, err, gerrors.ErrNodeNotFound)
		info, err = f.mesh.Resolve(ctx, addr)
		require.NoError(t, err)
		assert.True(t, info.IsDirect())
		require.NoError(t, f.mesh.Stop(ctx))
	})
	t.Run("With stream listener", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		f := newFixture(t)
		addr := address.New("listener", "1")
		info := stream.Info{AddressType: "listener", AddressID: "1", Provider: stream.MemoryProviderName, Namespace: "listener-1"}

		var received atomic.Int32
		listener, err := f.mesh.RegisterStreamListener(ctx, addr, info, func(context.Context, *stream.Message) error {
			received.Inc()
			return nil
		})
		require.NoError(t, err)

		result, err := f.mesh.Send(ctx, addr, wrapperspb.String("a"))
		require.NoError(t, err)
		assert.True(t, result.IsForwarded())
		require.Eventually(t, func() bool { return received.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, listener.Dispose(ctx))
		require.NoError(t, f.mesh.Stop(ctx))
	})
	t.Run("With delivery metrics", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		reader := sdkmetric.NewManualReader()
		meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		f := newFixture(t, WithMeterProvider(meterProvider))
		require.NoError(t, f.mesh.UpdateNode(ctx, node.New("orders", "", node.WithStatic("inbox"))))

		_, err := f.mesh.Send(ctx, address.New("orders", "1"), wrapperspb.String("a"))
		require.NoError(t, err)
		_, err = f.mesh.Send(ctx, address.New("app", "9"), wrapperspb.String("a"))
		require.NoError(t, err)

		var collected metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(ctx, &collected))
		totals := make(map[string]int64)
		for _, scope := range collected.ScopeMetrics {
			for _, m := range scope.Metrics {
				if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
					for _, point := range sum.DataPoints {
						totals[m.Name] += point.Value
					}
				}
			}
		}
		assert.EqualValues(t, 2, totals["mesh_deliveries"])
		assert.EqualValues(t, 1, totals["mesh_hub_activations"])
		require.NoError(t, f.mesh.Stop(ctx))
		require.NoError(t, meterProvider.Shutdown(ctx))
	})
	t.Run("With lifecycle guards", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		_, err := New("")
		assert.ErrorIs(t, err, gerrors.ErrNameRequired)

		m, err := New("guards", WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		_, err = m.Send(ctx, address.New("app", "1"), wrapperspb.String("a"))
		assert.ErrorIs(t, err, gerrors.ErrMeshNotStarted)
		assert.ErrorIs(t, m.Activate(ctx, address.New("app", "1")), gerrors.ErrMeshNotStarted)

		require.NoError(t, m.UpdateNode(ctx, node.New("orders", "", node.WithStatic("inbox"))))
		nodes, err := m.Nodes(ctx)
		require.NoError(t, err)
		assert.Len(t, nodes, 1)

		require.NoError(t, m.Start(ctx))
		assert.True(t, m.Running())
		require.NoError(t, m.Start(ctx))
		require.NoError(t, m.Stop(ctx))
		require.NoError(t, m.Stop(ctx))
		assert.ErrorIs(t, m.Start(ctx), gerrors.ErrMeshStopped)
	})
}
