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

package catalog

import (
	"slices"

	"github.com/systemorph/meshweaver/address"
)

// KeyMapper maps an address to the key of the node serving it.
// ok is false when the mapper does not apply to the address.
type KeyMapper interface {
	MapKey(addr address.Address) (key string, ok bool)
}

// KeyMapperFunc adapts a function to the KeyMapper interface
type KeyMapperFunc func(addr address.Address) (string, bool)

// MapKey calls f
func (f KeyMapperFunc) MapKey(addr address.Address) (string, bool) {
	return f(addr)
}

// ApplicationIdentity maps addresses of the given application types to their
// full type/id identity, so every application instance has its own node.
func ApplicationIdentity(applicationTypes ...string) KeyMapper {
	types := slices.Clone(applicationTypes)
	return KeyMapperFunc(func(addr address.Address) (string, bool) {
		if addr.ID == "" || !slices.Contains(types, addr.Type) {
			return "", false
		}
		return addr.Key(), true
	})
}

// TypeName maps every address to its type, so all instances of a type share one node.
func TypeName() KeyMapper {
	return KeyMapperFunc(func(addr address.Address) (string, bool) {
		if addr.Type == "" {
			return "", false
		}
		return addr.Type, true
	})
}

// ExactAddress maps every address to its own type/id key.
func ExactAddress() KeyMapper {
	return KeyMapperFunc(func(addr address.Address) (string, bool) {
		if addr.Type == "" {
			return "", false
		}
		return addr.Key(), true
	})
}
