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

package hosting

import "maps"

// StreamActivity is the durable bookkeeping of a hub grain.
//
// Counters restart from zero at every activation; Token survives activations so a
// stream hub resumes where it stopped.
type StreamActivity struct {
	// EventCounter counts delivered messages per message type
	EventCounter map[string]int `json:"eventCounter"`
	// ErrorCounter counts deliveries the hub failed
	ErrorCounter int `json:"errorCounter"`
	// Token is the sequence of the last stream delivery handled
	Token uint64 `json:"token"`
	// IsDeactivated is true between a deactivation and the next activation
	IsDeactivated bool `json:"isDeactivated"`
}

// Clone returns a deep copy of the activity
func (a *StreamActivity) Clone() *StreamActivity {
	if a == nil {
		return nil
	}
	clone := *a
	clone.EventCounter = maps.Clone(a.EventCounter)
	if clone.EventCounter == nil {
		clone.EventCounter = make(map[string]int)
	}
	return &clone
}

// Delivered returns the total of delivered messages
func (a *StreamActivity) Delivered() int {
	total := 0
	for _, count := range a.EventCounter {
		total += count
	}
	return total
}
