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

package address

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/systemorph/meshweaver/errors"
)

func TestAddress(t *testing.T) {
	t.Run("With type and id", func(t *testing.T) {
		addr := New("app", "1")
		assert.Equal(t, "app/1", addr.String())
		assert.Equal(t, "app/1", addr.Key())
		assert.NoError(t, addr.Validate())
		assert.False(t, addr.IsHosted())
		assert.False(t, addr.IsZero())
	})
	t.Run("With empty id", func(t *testing.T) {
		addr := New("pricing", "")
		assert.Equal(t, "pricing", addr.String())
		assert.NoError(t, addr.Validate())
	})
	t.Run("With empty type", func(t *testing.T) {
		err := New("", "1").Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrInvalidAddress)
	})
	t.Run("With separator in id", func(t *testing.T) {
		assert.Error(t, New("app", "1/2").Validate())
	})
	t.Run("With too long id", func(t *testing.T) {
		assert.Error(t, New("app", strings.Repeat("x", 256)).Validate())
	})
	t.Run("With hosted address", func(t *testing.T) {
		inner := New("layout", "main")
		host := New("app", "1")
		addr := Hosted(inner, host)

		assert.True(t, addr.IsHosted())
		assert.Equal(t, "layout/main@app/1", addr.String())
		assert.Equal(t, "layout/main", addr.Key())
		assert.True(t, addr.Inner().Equal(inner))

		actual, ok := addr.Host()
		require.True(t, ok)
		assert.True(t, actual.Equal(host))
		assert.NoError(t, addr.Validate())

		rehosted := Hosted(addr, New("app", "2"))
		assert.Equal(t, "layout/main@app/2", rehosted.String())
	})
	t.Run("With equality", func(t *testing.T) {
		assert.True(t, New("app", "1").Equal(New("app", "1")))
		assert.False(t, New("app", "1").Equal(New("app", "2")))
		hosted := Hosted(New("app", "1"), New("host", "a"))
		assert.False(t, hosted.Equal(New("app", "1")))
		assert.True(t, hosted.Equal(Hosted(New("app", "1"), New("host", "a"))))
		assert.False(t, hosted.Equal(Hosted(New("app", "1"), New("host", "b"))))
	})
}

func TestParse(t *testing.T) {
	t.Run("With canonical form", func(t *testing.T) {
		addr, err := Parse("app/1")
		require.NoError(t, err)
		assert.Equal(t, New("app", "1"), addr)
	})
	t.Run("With type only", func(t *testing.T) {
		addr, err := Parse("pricing")
		require.NoError(t, err)
		assert.Equal(t, "pricing", addr.Type)
		assert.Empty(t, addr.ID)
	})
	t.Run("With hosted form", func(t *testing.T) {
		addr, err := Parse("layout/main@app/1")
		require.NoError(t, err)
		host, ok := addr.Host()
		require.True(t, ok)
		assert.Equal(t, "app/1", host.String())
		assert.Equal(t, "layout/main", addr.Inner().String())
	})
	t.Run("With empty text", func(t *testing.T) {
		_, err := Parse("  ")
		assert.ErrorIs(t, err, gerrors.ErrInvalidAddress)
	})
	t.Run("With too many separators", func(t *testing.T) {
		_, err := Parse("app/1/2")
		assert.Error(t, err)
	})
	t.Run("With MustParse panic", func(t *testing.T) {
		assert.Panics(t, func() { MustParse("/1") })
	})
}

func TestAddressText(t *testing.T) {
	type envelope struct {
		Target Address `json:"target"`
		Sender Address `json:"sender"`
	}

	in := envelope{Target: Hosted(New("layout", "main"), New("app", "1"))}
	bytea, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"target":"layout/main@app/1","sender":""}`, string(bytea))

	var out envelope
	require.NoError(t, json.Unmarshal(bytea, &out))
	assert.True(t, out.Target.Equal(in.Target))
	assert.True(t, out.Sender.IsZero())
}
