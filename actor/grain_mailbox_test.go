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

package actor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrainMailbox(t *testing.T) {
	t.Run("With FIFO order", func(t *testing.T) {
		mailbox := newGrainMailbox()
		assert.True(t, mailbox.IsEmpty())
		assert.Nil(t, mailbox.Dequeue())

		for i := range 3 {
			mailbox.Enqueue(newGrainContext(context.Background(), nil, nil, i, false))
		}
		assert.EqualValues(t, 3, mailbox.Len())

		for i := range 3 {
			gctx := mailbox.Dequeue()
			require.NotNil(t, gctx)
			assert.Equal(t, i, gctx.Message())
		}
		assert.True(t, mailbox.IsEmpty())
	})
	t.Run("With concurrent producers", func(t *testing.T) {
		mailbox := newGrainMailbox()
		var wg sync.WaitGroup
		for i := range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				mailbox.Enqueue(newGrainContext(context.Background(), nil, nil, i, false))
			}()
		}
		wg.Wait()

		seen := make(map[int]bool)
		for gctx := mailbox.Dequeue(); gctx != nil; gctx = mailbox.Dequeue() {
			seen[gctx.Message().(int)] = true
		}
		assert.Len(t, seen, 100)
	})
}

func TestGrainContext(t *testing.T) {
	t.Run("With single reply", func(t *testing.T) {
		gctx := newGrainContext(context.Background(), nil, nil, "ping", true)
		gctx.Response("pong")
		gctx.Err(assert.AnError)
		gctx.NoErr()

		resp, ok := <-gctx.getResponse()
		assert.True(t, ok)
		assert.Equal(t, "pong", resp)
	})
	t.Run("With response on tell", func(t *testing.T) {
		gctx := newGrainContext(context.Background(), nil, nil, "ping", false)
		gctx.Response("pong")
		err, ok := <-gctx.getError()
		assert.False(t, ok)
		assert.NoError(t, err)
	})
	t.Run("With error", func(t *testing.T) {
		gctx := newGrainContext(context.Background(), nil, nil, "ping", true)
		gctx.Err(assert.AnError)
		assert.ErrorIs(t, <-gctx.getError(), assert.AnError)
	})
}
