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

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZap(t *testing.T) {
	t.Run("With unknown level falls back to debug", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(7, buffer)
		require.Equal(t, DebugLevel, logger.LogLevel())

		logger.Debug("test debug")
		msg, lvl := decodeEntry(t, buffer.Bytes())
		assert.Equal(t, "test debug", msg)
		assert.Equal(t, "debug", lvl)
	})
	t.Run("With info level filters debug entries", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(InfoLevel, buffer)
		logger.Debugf("hidden %d", 1)
		assert.Zero(t, buffer.Len())

		logger.Infof("hub %s activated", "app/1")
		msg, lvl := decodeEntry(t, buffer.Bytes())
		assert.Equal(t, "hub app/1 activated", msg)
		assert.Equal(t, "info", lvl)
	})
	t.Run("With warn and error levels", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(WarningLevel, buffer)
		require.Equal(t, WarningLevel, logger.LogLevel())
		logger.Info("hidden")
		assert.Zero(t, buffer.Len())

		logger.Warn("careful")
		msg, lvl := decodeEntry(t, buffer.Bytes())
		assert.Equal(t, "careful", msg)
		assert.Equal(t, "warn", lvl)

		buffer.Reset()
		logger.Errorf("failed: %s", "boom")
		msg, lvl = decodeEntry(t, buffer.Bytes())
		assert.Equal(t, "failed: boom", msg)
		assert.Equal(t, "error", lvl)
	})
	t.Run("With panic level", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(PanicLevel, buffer)
		assert.Panics(t, func() { logger.Panic("stop") })
		assert.Panics(t, func() { logger.Panicf("stop %d", 1) })
	})
	t.Run("With structured fields", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(InfoLevel, buffer)
		logger.With("address", "app/1", "kind", "hub", "orphan").Info("activated")

		var entry map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(buffer.Bytes(), &entry))
		assert.Contains(t, entry, "address")
		assert.Contains(t, entry, "kind")
		assert.Contains(t, entry, "_")
	})
	t.Run("With no fields returns the same logger", func(t *testing.T) {
		logger := NewZap(InfoLevel, new(bytes.Buffer))
		assert.Equal(t, Logger(logger), logger.With())
		assert.Equal(t, Logger(logger), logger.With(42, "ignored"))
	})
	t.Run("With outputs and std logger", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(InfoLevel, buffer)
		assert.Len(t, logger.LogOutput(), 1)
		require.NotNil(t, logger.StdLogger())
		require.NoError(t, logger.Flush())
	})
}

func TestDiscardLogger(t *testing.T) {
	DiscardLogger.Info("nothing")
	DiscardLogger.Errorf("nothing %d", 1)
	assert.Equal(t, InfoLevel, DiscardLogger.LogLevel())
	assert.Equal(t, DiscardLogger, DiscardLogger.With("k", "v"))
	assert.NoError(t, DiscardLogger.Flush())
	assert.NotNil(t, DiscardLogger.StdLogger())
	assert.Panics(t, func() { DiscardLogger.Panic("boom") })
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, WarningLevel, ParseLevel("WARN"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InvalidLevel, ParseLevel("chatty"))
	assert.Equal(t, "WARNING", WarningLevel.String())
	assert.Equal(t, "INVALID", InvalidLevel.String())
}

func decodeEntry(t *testing.T, data []byte) (string, string) {
	t.Helper()
	var entry struct {
		Msg   string `json:"msg"`
		Level string `json:"level"`
	}
	require.NoError(t, json.Unmarshal(data, &entry))
	return entry.Msg, entry.Level
}
