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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/systemorph/meshweaver/address"
	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/hub"
	"github.com/systemorph/meshweaver/log"
)

type collector struct {
	mu        sync.Mutex
	sequences []uint64
	payloads  []string
}

func (c *collector) handle(_ context.Context, message *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequences = append(c.sequences, message.Sequence)
	c.payloads = append(c.payloads, message.Delivery.Message.(*wrapperspb.StringValue).GetValue())
	return nil
}

func (c *collector) snapshot() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint64, len(c.sequences))
	copy(out, c.sequences)
	return out
}

func newDelivery(text string) *hub.Delivery {
	return hub.NewDelivery(address.New("app", "1"), wrapperspb.String(text))
}

func TestMemoryProvider(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	t.Run("With publish order preserved", func(t *testing.T) {
		provider := NewMemoryProvider(WithLogger(log.DiscardLogger))
		defer func() { require.NoError(t, provider.Close(ctx)) }()

		sink := new(collector)
		sub, err := provider.Subscribe(ctx, "ns1", 0, sink.handle)
		require.NoError(t, err)
		assert.NotEmpty(t, sub.ID())
		assert.Equal(t, "ns1", sub.Namespace())

		for i, text := range []string{"a", "b", "c"} {
			seq, err := provider.Publish(ctx, "ns1", newDelivery(text))
			require.NoError(t, err)
			assert.EqualValues(t, i+1, seq)
		}

		require.Eventually(t, func() bool { return len(sink.snapshot()) == 3 }, time.Second, 10*time.Millisecond)
		assert.Equal(t, []uint64{1, 2, 3}, sink.snapshot())
		assert.Equal(t, []string{"a", "b", "c"}, sink.payloads)
		assert.EqualValues(t, 3, provider.LastSequence("ns1"))
		require.NoError(t, sub.Unsubscribe(ctx))
		require.NoError(t, sub.Unsubscribe(ctx))
	})
	t.Run("With resume from token", func(t *testing.T) {
		provider := NewMemoryProvider(WithLogger(log.DiscardLogger))
		defer func() { require.NoError(t, provider.Close(ctx)) }()

		for _, text := range []string{"a", "b", "c", "d"} {
			_, err := provider.Publish(ctx, "ns1", newDelivery(text))
			require.NoError(t, err)
		}

		sink := new(collector)
		_, err := provider.Subscribe(ctx, "ns1", 2, sink.handle)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
		assert.Equal(t, []uint64{3, 4}, sink.snapshot())
	})
	t.Run("With namespaces isolated", func(t *testing.T) {
		provider := NewMemoryProvider(WithLogger(log.DiscardLogger))
		defer func() { require.NoError(t, provider.Close(ctx)) }()

		sink := new(collector)
		_, err := provider.Subscribe(ctx, "ns1", 0, sink.handle)
		require.NoError(t, err)

		_, err = provider.Publish(ctx, "ns2", newDelivery("other"))
		require.NoError(t, err)
		_, err = provider.Publish(ctx, "ns1", newDelivery("mine"))
		require.NoError(t, err)

		require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"mine"}, sink.payloads)
	})
	t.Run("With new subscription superseding the previous one", func(t *testing.T) {
		provider := NewMemoryProvider(WithLogger(log.DiscardLogger))
		defer func() { require.NoError(t, provider.Close(ctx)) }()

		first := new(collector)
		_, err := provider.Subscribe(ctx, "ns1", 0, first.handle)
		require.NoError(t, err)
		_, err = provider.Publish(ctx, "ns1", newDelivery("a"))
		require.NoError(t, err)
		require.Eventually(t, func() bool { return len(first.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

		second := new(collector)
		_, err = provider.Subscribe(ctx, "ns1", 1, second.handle)
		require.NoError(t, err)
		_, err = provider.Publish(ctx, "ns1", newDelivery("b"))
		require.NoError(t, err)

		require.Eventually(t, func() bool { return len(second.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
		assert.Equal(t, []uint64{2}, second.snapshot())
		assert.Equal(t, []uint64{1}, first.snapshot())
	})
	t.Run("With retention overflow", func(t *testing.T) {
		provider := NewMemoryProvider(WithRetention(2), WithLogger(log.DiscardLogger))
		defer func() { require.NoError(t, provider.Close(ctx)) }()

		for _, text := range []string{"a", "b", "c", "d"} {
			_, err := provider.Publish(ctx, "ns1", newDelivery(text))
			require.NoError(t, err)
		}

		sink := new(collector)
		_, err := provider.Subscribe(ctx, "ns1", 0, sink.handle)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
		assert.Equal(t, []uint64{3, 4}, sink.snapshot())
	})
	t.Run("With handler error", func(t *testing.T) {
		provider := NewMemoryProvider(WithLogger(log.DiscardLogger))
		defer func() { require.NoError(t, provider.Close(ctx)) }()

		var (
			mu    sync.Mutex
			calls int
		)
		_, err := provider.Subscribe(ctx, "ns1", 0, func(context.Context, *Message) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			return errors.New("boom")
		})
		require.NoError(t, err)

		for range 2 {
			_, err := provider.Publish(ctx, "ns1", newDelivery("x"))
			require.NoError(t, err)
		}

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return calls == 2
		}, time.Second, 10*time.Millisecond)
	})
	t.Run("With delivery sequence stamped", func(t *testing.T) {
		provider := NewMemoryProvider(WithName("local"), WithLogger(log.DiscardLogger))
		defer func() { require.NoError(t, provider.Close(ctx)) }()
		assert.Equal(t, "local", provider.Name())

		delivery := newDelivery("a")
		received := make(chan *Message, 1)
		_, err := provider.Subscribe(ctx, "ns1", 0, func(_ context.Context, message *Message) error {
			received <- message
			return nil
		})
		require.NoError(t, err)
		_, err = provider.Publish(ctx, "ns1", delivery)
		require.NoError(t, err)

		select {
		case message := <-received:
			assert.EqualValues(t, 1, message.Delivery.Sequence)
			assert.Equal(t, delivery.ID, message.Delivery.ID)
			assert.Zero(t, delivery.Sequence)
		case <-time.After(time.Second):
			t.Fatal("message not received")
		}
	})
	t.Run("With invalid input", func(t *testing.T) {
		provider := NewMemoryProvider(WithLogger(log.DiscardLogger))
		_, err := provider.Publish(ctx, "ns1", nil)
		assert.ErrorIs(t, err, gerrors.ErrInvalidMessage)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = provider.Publish(cancelled, "ns1", newDelivery("a"))
		assert.ErrorIs(t, err, context.Canceled)

		require.NoError(t, provider.Close(ctx))
		require.NoError(t, provider.Close(ctx))
		_, err = provider.Publish(ctx, "ns1", newDelivery("a"))
		assert.ErrorIs(t, err, gerrors.ErrProviderClosed)
		_, err = provider.Subscribe(ctx, "ns1", 0, func(context.Context, *Message) error { return nil })
		assert.ErrorIs(t, err, gerrors.ErrProviderClosed)
	})
}

func TestProviders(t *testing.T) {
	ctx := context.Background()
	providers := NewProviders(
		NewMemoryProvider(WithLogger(log.DiscardLogger)),
		NewMemoryProvider(WithName("audit"), WithLogger(log.DiscardLogger)),
	)

	provider, err := providers.Get("memory")
	require.NoError(t, err)
	assert.Equal(t, "memory", provider.Name())

	_, err = providers.Get("kafka")
	assert.ErrorIs(t, err, gerrors.ErrStreamProviderNotFound)
	assert.Equal(t, []string{"audit", "memory"}, providers.Names())

	require.NoError(t, providers.Close(ctx))
	assert.Empty(t, providers.Names())
}

func TestInfo(t *testing.T) {
	direct := DirectInfo(address.New("app", "2"))
	assert.True(t, direct.IsDirect())
	assert.Equal(t, Info{AddressType: "app", AddressID: "2", Namespace: "app/2"}, direct)
	assert.Equal(t, "direct:app/2", direct.String())

	streamed := Info{AddressType: "app", AddressID: "1", Provider: "memory", Namespace: "ns1"}
	assert.False(t, streamed.IsDirect())
	assert.Equal(t, "memory:ns1", streamed.String())
	assert.True(t, streamed == Info{AddressType: "app", AddressID: "1", Provider: "memory", Namespace: "ns1"})
}
