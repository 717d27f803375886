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
	"github.com/systemorph/meshweaver/internal/validation"
)

const (
	// DefaultNamespace prefixes the catalog keys in the store
	DefaultNamespace = "catalog"
	// DefaultApplicationType is the address type treated as an application identity
	DefaultApplicationType = "app"
)

// Config is the explicit catalog configuration handed over at startup.
type Config struct {
	// Namespace prefixes every node key in the store
	Namespace string
	// ApplicationTypes lists the address types resolved by full identity
	ApplicationTypes []string
	// KeyMappers is consulted in order, the first mapper returning a key wins.
	// When empty the chain is ApplicationIdentity(ApplicationTypes...) then TypeName.
	KeyMappers []KeyMapper
}

var _ validation.Validator = (*Config)(nil)

// DefaultConfig returns the default catalog configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace:        DefaultNamespace,
		ApplicationTypes: []string{DefaultApplicationType},
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	return validation.New(validation.AllErrors()).
		AddValidator(validation.NewSegmentValidator("namespace", c.Namespace, false)).
		Validate()
}

// mappers returns the effective key mapper chain
func (c *Config) mappers() []KeyMapper {
	if len(c.KeyMappers) > 0 {
		return c.KeyMappers
	}
	types := c.ApplicationTypes
	if len(types) == 0 {
		types = []string{DefaultApplicationType}
	}
	return []KeyMapper{ApplicationIdentity(types...), TypeName()}
}
