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

import "github.com/systemorph/meshweaver/address"

// Info is the resolved delivery channel of an address.
//
// An empty Provider means the address is reached by invoking its hub grain directly.
// Otherwise deliveries are published on the (Provider, Namespace) stream.
// Info is comparable with ==.
type Info struct {
	AddressType string `json:"addressType"`
	AddressID   string `json:"addressId,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Namespace   string `json:"namespace,omitempty"`
}

// DirectInfo returns the direct delivery channel of addr.
// The namespace is the default in-process channel name of the address.
func DirectInfo(addr address.Address) Info {
	return Info{
		AddressType: addr.Type,
		AddressID:   addr.ID,
		Namespace:   addr.String(),
	}
}

// IsDirect reports whether deliveries go straight to the hub grain
func (i Info) IsDirect() bool {
	return i.Provider == ""
}

// String returns the textual form of the channel
func (i Info) String() string {
	if i.IsDirect() {
		return "direct:" + i.Namespace
	}
	return i.Provider + ":" + i.Namespace
}
