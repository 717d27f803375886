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
	"time"

	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/passivation"
	"github.com/systemorph/meshweaver/persistence"
)

const (
	// DefaultAskTimeout bounds how long AskGrain waits for a reply.
	DefaultAskTimeout = 5 * time.Second
	// DefaultPassivationTimeout is the idle period after which a grain is deactivated.
	DefaultPassivationTimeout = 2 * time.Minute

	defaultShardCount = 64
)

// Option configures the actor System.
type Option interface {
	// Apply sets the Option value of a System.
	Apply(*System)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*System)

// Apply applies the option to the System
func (f OptionFunc) Apply(s *System) {
	f(s)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(s *System) {
		s.logger = logger
	})
}

// WithAskTimeout sets the default timeout of AskGrain and DeactivateGrain.
func WithAskTimeout(timeout time.Duration) Option {
	return OptionFunc(func(s *System) {
		s.askTimeout = timeout
	})
}

// WithPassivation sets the passivation strategy applied to every grain.
func WithPassivation(strategy passivation.Strategy) Option {
	return OptionFunc(func(s *System) {
		s.passivation = strategy
	})
}

// WithPassivationAfter deactivates grains idle for longer than timeout.
func WithPassivationAfter(timeout time.Duration) Option {
	return WithPassivation(passivation.NewTimeBasedStrategy(timeout))
}

// WithPassivationDisabled keeps grains active until they are explicitly deactivated.
func WithPassivationDisabled() Option {
	return WithPassivation(passivation.NewLongLivedStrategy())
}

// WithStateStore sets the durable store handed to grains.
func WithStateStore(store persistence.Store) Option {
	return OptionFunc(func(s *System) {
		s.stateStore = store
	})
}

// WithShardCount sets the number of shards of the grain table.
func WithShardCount(count int) Option {
	return OptionFunc(func(s *System) {
		if count > 0 {
			s.shardCount = count
		}
	})
}
