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

package validation

import (
	"fmt"
	"strings"
)

// maxSegmentLength bounds address types and ids
const maxSegmentLength = 255

type segmentValidator struct {
	field    string
	value    string
	optional bool
}

var _ Validator = (*segmentValidator)(nil)

// NewSegmentValidator validates one segment of a mesh address.
// A segment may not contain '/' or '@' and must not exceed 255 characters.
// When optional is false the segment must also be non-blank.
func NewSegmentValidator(field, value string, optional bool) Validator {
	return &segmentValidator{field: field, value: value, optional: optional}
}

// Validate executes the validation
func (x *segmentValidator) Validate() error {
	if x.value == "" {
		if x.optional {
			return nil
		}
		return fmt.Errorf("the [%s] is required", x.field)
	}

	if strings.TrimSpace(x.value) != x.value {
		return fmt.Errorf("the [%s] must not carry leading or trailing spaces", x.field)
	}

	if len(x.value) > maxSegmentLength {
		return fmt.Errorf("the [%s] is too long. Maximum length is %d", x.field, maxSegmentLength)
	}

	if strings.ContainsAny(x.value, "/@") {
		return fmt.Errorf("the [%s] must not contain '/' or '@'", x.field)
	}
	return nil
}
