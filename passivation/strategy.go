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

package passivation

import (
	"fmt"
	"time"
)

// Strategy decides when an idle grain is deactivated.
type Strategy interface {
	fmt.Stringer
	Name() string
}

// TimeBasedStrategy deactivates a grain once it has not received
// any message for the configured timeout.
type TimeBasedStrategy struct {
	timeout time.Duration
}

// ensure TimeBasedStrategy implements Strategy interface
var _ Strategy = (*TimeBasedStrategy)(nil)

// NewTimeBasedStrategy creates a TimeBasedStrategy with the given idle timeout.
func NewTimeBasedStrategy(timeout time.Duration) *TimeBasedStrategy {
	return &TimeBasedStrategy{timeout: timeout}
}

// Timeout returns the idle period after which the grain is deactivated.
func (t *TimeBasedStrategy) Timeout() time.Duration {
	return t.timeout
}

// String returns the string representation of the TimeBasedStrategy.
func (t *TimeBasedStrategy) String() string {
	return fmt.Sprintf("Timed-Based of Duration=[%s]", t.timeout)
}

// Name returns the name of the TimeBasedStrategy.
func (t *TimeBasedStrategy) Name() string {
	return "TimeBased"
}

// LongLivedStrategy never deactivates a grain on its own.
// The grain stays active until it asks for deactivation or the system stops.
type LongLivedStrategy struct{}

// ensure LongLivedStrategy implements Strategy interface
var _ Strategy = (*LongLivedStrategy)(nil)

// NewLongLivedStrategy creates a LongLivedStrategy.
func NewLongLivedStrategy() *LongLivedStrategy {
	return &LongLivedStrategy{}
}

// String returns the string representation of the LongLivedStrategy.
func (l *LongLivedStrategy) String() string {
	return "Long Lived"
}

// Name returns the name of the LongLivedStrategy.
func (l *LongLivedStrategy) Name() string {
	return "LongLived"
}

// Timeout extracts the idle timeout of a strategy.
// It returns false when the strategy never passivates.
func Timeout(strategy Strategy) (time.Duration, bool) {
	if s, ok := strategy.(*TimeBasedStrategy); ok && s.timeout > 0 {
		return s.timeout, true
	}
	return 0, false
}
