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
	"fmt"
	"strings"

	"github.com/systemorph/meshweaver/internal/validation"
)

const kindPattern = `^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`

// GrainIdentity names a grain: its kind selects the factory,
// its name distinguishes instances of the same kind.
type GrainIdentity struct {
	kind string
	name string
}

// NewGrainIdentity creates a validated GrainIdentity.
func NewGrainIdentity(kind, name string) (*GrainIdentity, error) {
	identity := &GrainIdentity{kind: kind, name: name}
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	return identity, nil
}

// Kind returns the grain kind
func (g *GrainIdentity) Kind() string {
	return g.kind
}

// Name returns the grain name
func (g *GrainIdentity) Name() string {
	return g.name
}

// String renders the identity as kind/name.
func (g *GrainIdentity) String() string {
	return fmt.Sprintf("%s/%s", g.kind, g.name)
}

// Equal reports whether both identities name the same grain.
func (g *GrainIdentity) Equal(other *GrainIdentity) bool {
	if g == nil || other == nil {
		return g == other
	}
	return g.kind == other.kind && g.name == other.name
}

// Validate checks the identity fields.
func (g *GrainIdentity) Validate() error {
	return validation.
		New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("kind", g.kind)).
		AddValidator(validation.NewPatternValidator(kindPattern, "kind", g.kind)).
		AddValidator(validation.NewEmptyStringValidator("name", g.name)).
		AddAssertion(strings.TrimSpace(g.name) == g.name, "the [name] must not carry leading or trailing spaces").
		Validate()
}
