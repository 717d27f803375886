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
	"context"

	"github.com/systemorph/meshweaver/passivation"
)

// Grain is a virtual actor. The runtime creates one instance per identity on demand,
// activates it before the first message and deactivates it when idle or asked to.
//
// All three methods run on the grain's own turn: no two of them ever execute
// concurrently for the same identity.
type Grain interface {
	// OnActivate is called once before the first message is handled.
	// An error leaves the grain inactive and is returned to the caller of that message.
	OnActivate(ctx context.Context, props *GrainProps) error
	// OnReceive handles a single message. Replies go through the GrainContext.
	OnReceive(ctx *GrainContext)
	// OnDeactivate releases whatever the grain owns.
	OnDeactivate(ctx context.Context, props *GrainProps) error
}

// GrainFactory creates the Grain instance backing an identity.
type GrainFactory func(ctx context.Context, identity *GrainIdentity) (Grain, error)

// Passivating is implemented by grains overriding the system passivation strategy.
// It is consulted once the grain is activated.
type Passivating interface {
	PassivationStrategy() passivation.Strategy
}
