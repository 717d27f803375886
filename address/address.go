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

// Package address provides the routing key of the mesh.
//
// An address identifies one logical entity and is made of two parts:
//
//   - Type: the kind of entity (for instance "app" or "pricing")
//   - ID: the identity of the entity within its type, possibly empty
//
// The canonical textual representation of an Address is:
//
//	<type>/<id>
//
// or just <type> when the ID is empty.
//
// An address may also be hosted on another address. A hosted address is scoped
// under its host and renders as:
//
//	<type>/<id>@<host type>/<host id>
//
// Address is an immutable value and is safe for concurrent use.
package address

import (
	"encoding"
	"strings"

	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/internal/validation"
)

const (
	separator = "/"
	hostMark  = "@"
)

// Address is the logical identity of a routable entity.
type Address struct {
	Type string
	ID   string

	host *Address
}

var (
	_ validation.Validator     = Address{}
	_ encoding.TextMarshaler   = Address{}
	_ encoding.TextUnmarshaler = (*Address)(nil)
)

// New creates an Address with the given type and id.
// New does not validate the inputs; call Validate to verify the result.
func New(addressType, id string) Address {
	return Address{Type: addressType, ID: id}
}

// Hosted scopes inner under host.
//
// Routing unwraps a hosted address when its host is the local mesh identity.
// Hosting a hosted address on another host keeps only the innermost address.
func Hosted(inner, host Address) Address {
	inner = inner.Inner()
	h := host.Inner()
	inner.host = &h
	return inner
}

// Inner returns the address without its host scope.
func (a Address) Inner() Address {
	return Address{Type: a.Type, ID: a.ID}
}

// Host returns the host the address is scoped under, if any.
func (a Address) Host() (Address, bool) {
	if a.host == nil {
		return Address{}, false
	}
	return *a.host, true
}

// IsHosted reports whether the address is scoped under a host.
func (a Address) IsHosted() bool {
	return a.host != nil
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a.Type == "" && a.ID == "" && a.host == nil
}

// Key returns the unhosted "type/id" form, the identity used by actors and caches.
func (a Address) Key() string {
	if a.ID == "" {
		return a.Type
	}

	var builder strings.Builder
	builder.Grow(len(a.Type) + 1 + len(a.ID))
	_, _ = builder.WriteString(a.Type)
	_, _ = builder.WriteString(separator)
	_, _ = builder.WriteString(a.ID)
	return builder.String()
}

// String returns the canonical textual form of the Address.
//
// Examples:
//
//	address.New("app", "1").String()                                      // "app/1"
//	address.New("app", "").String()                                       // "app"
//	address.Hosted(address.New("layout", "main"), address.New("app", "1")) // "layout/main@app/1"
func (a Address) String() string {
	if a.host == nil {
		return a.Key()
	}
	return a.Key() + hostMark + a.host.Key()
}

// Equal reports whether a and b represent the same address, host included.
func (a Address) Equal(b Address) bool {
	if a.Type != b.Type || a.ID != b.ID {
		return false
	}

	switch {
	case a.host == nil && b.host == nil:
		return true
	case a.host == nil || b.host == nil:
		return false
	default:
		return a.host.Type == b.host.Type && a.host.ID == b.host.ID
	}
}

// Validate checks whether the Address is well-formed.
//
// Validation rules:
//   - Type must be non-empty, and neither Type nor ID may contain '/' or '@'
//   - Type and ID must not exceed 255 characters
//   - the host, when set, must itself be valid
func (a Address) Validate() error {
	chain := validation.
		New(validation.FailFast()).
		AddValidator(validation.NewSegmentValidator("type", a.Type, false)).
		AddValidator(validation.NewSegmentValidator("id", a.ID, true))

	if a.host != nil {
		chain.
			AddValidator(validation.NewSegmentValidator("host type", a.host.Type, false)).
			AddValidator(validation.NewSegmentValidator("host id", a.host.ID, true))
	}

	if err := chain.Validate(); err != nil {
		return gerrors.NewErrInvalidAddress(err)
	}
	return nil
}

// Parse parses a canonical address string into an Address.
//
// Accepted formats:
//
//	<type>
//	<type>/<id>
//	<type>/<id>@<host type>/<host id>
//
// The result is validated.
func Parse(text string) (Address, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Address{}, gerrors.NewErrInvalidAddress(validation.NewEmptyStringValidator("address", text).Validate())
	}

	innerPart, hostPart, hosted := strings.Cut(text, hostMark)
	addr := parsePart(innerPart)
	if hosted {
		host := parsePart(hostPart)
		addr.host = &host
	}

	if err := addr.Validate(); err != nil {
		return Address{}, err
	}
	return addr, nil
}

// MustParse is like Parse but panics when the text is not a valid address.
func MustParse(text string) Address {
	addr, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return addr
}

// MarshalText renders the address in its canonical form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses the canonical form produced by MarshalText.
// An empty text yields the zero address.
func (a *Address) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Address{}
		return nil
	}

	addr, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

func parsePart(part string) Address {
	addressType, id, _ := strings.Cut(part, separator)
	return Address{Type: addressType, ID: id}
}
