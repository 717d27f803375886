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

package passivation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategy(t *testing.T) {
	t.Run("With time based strategy", func(t *testing.T) {
		strategy := NewTimeBasedStrategy(5 * time.Minute)
		require.Implements(t, (*Strategy)(nil), strategy)
		assert.Equal(t, 5*time.Minute, strategy.Timeout())
		assert.Equal(t, "TimeBased", strategy.Name())
		assert.Equal(t, "Timed-Based of Duration=[5m0s]", strategy.String())

		timeout, ok := Timeout(strategy)
		assert.True(t, ok)
		assert.Equal(t, 5*time.Minute, timeout)
	})
	t.Run("With long lived strategy", func(t *testing.T) {
		strategy := NewLongLivedStrategy()
		require.Implements(t, (*Strategy)(nil), strategy)
		assert.Equal(t, "Long Lived", strategy.String())
		assert.Equal(t, "LongLived", strategy.Name())

		_, ok := Timeout(strategy)
		assert.False(t, ok)
	})
	t.Run("With zero timeout", func(t *testing.T) {
		_, ok := Timeout(NewTimeBasedStrategy(0))
		assert.False(t, ok)
	})
}
