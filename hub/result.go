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

package hub

import "fmt"

// Status is the terminal outcome of a delivery attempt
type Status int

const (
	// StatusForwarded means the message reached its stream or its hub
	StatusForwarded Status = iota
	// StatusFailed means the message could not be delivered
	StatusFailed
)

// String returns the textual form of the status
func (s Status) String() string {
	switch s {
	case StatusForwarded:
		return "forwarded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome of a delivery
type Result struct {
	DeliveryID string
	Status     Status
	Reason     string
}

// Forwarded returns the result of a successful delivery
func Forwarded(deliveryID string) *Result {
	return &Result{DeliveryID: deliveryID, Status: StatusForwarded}
}

// Failed returns the result of a failed delivery with a diagnostic reason
func Failed(deliveryID, reason string) *Result {
	return &Result{DeliveryID: deliveryID, Status: StatusFailed, Reason: reason}
}

// IsForwarded reports whether the delivery succeeded
func (r *Result) IsForwarded() bool {
	return r != nil && r.Status == StatusForwarded
}

// IsFailed reports whether the delivery failed
func (r *Result) IsFailed() bool {
	return r != nil && r.Status == StatusFailed
}

// String returns the textual form of the result
func (r *Result) String() string {
	if r.Status == StatusFailed {
		return fmt.Sprintf("failed(%s)", r.Reason)
	}
	return r.Status.String()
}
