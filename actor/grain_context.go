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
	"fmt"

	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/persistence"
)

// GrainContext carries one message through a grain turn.
//
// Exactly one of Response, Err, NoErr or Unhandled should be called per message.
// Replies after the first one are dropped.
type GrainContext struct {
	ctx         context.Context
	self        *GrainIdentity
	system      *System
	message     any
	response    chan any
	err         chan error
	synchronous bool
	replied     bool
	deactivate  bool
}

func newGrainContext(ctx context.Context, system *System, to *GrainIdentity, message any, synchronous bool) *GrainContext {
	gctx := &GrainContext{
		ctx:         ctx,
		self:        to,
		system:      system,
		message:     message,
		err:         make(chan error, 1),
		synchronous: synchronous,
	}

	if synchronous {
		gctx.response = make(chan any, 1)
	}
	return gctx
}

// Context returns the context the message was sent with.
func (gctx *GrainContext) Context() context.Context {
	return gctx.ctx
}

// Self returns the identity of the grain handling the message
func (gctx *GrainContext) Self() *GrainIdentity {
	return gctx.self
}

// System returns the actor system
func (gctx *GrainContext) System() *System {
	return gctx.system
}

// Message returns the message being handled
func (gctx *GrainContext) Message() any {
	return gctx.message
}

// StateStore returns the durable store grains keep their state in.
func (gctx *GrainContext) StateStore() persistence.Store {
	return gctx.system.stateStore
}

// Logger returns the system logger
func (gctx *GrainContext) Logger() log.Logger {
	return gctx.system.logger
}

// Response replies to an Ask. On a Tell the value is dropped.
func (gctx *GrainContext) Response(resp any) {
	if gctx.replied {
		return
	}
	gctx.replied = true
	if !gctx.synchronous {
		close(gctx.err)
		return
	}
	gctx.response <- resp
	close(gctx.response)
}

// Err fails the message with the given error.
func (gctx *GrainContext) Err(err error) {
	if gctx.replied {
		return
	}
	gctx.replied = true
	gctx.err <- err
	close(gctx.err)
}

// NoErr completes the message without a response.
func (gctx *GrainContext) NoErr() {
	if gctx.replied {
		return
	}
	gctx.replied = true
	if gctx.synchronous {
		close(gctx.response)
	}
	close(gctx.err)
}

// Unhandled fails the message with ErrUnhandled.
func (gctx *GrainContext) Unhandled() {
	gctx.Err(fmt.Errorf("%w: %T", gerrors.ErrUnhandled, gctx.message))
}

// Deactivate asks the runtime to deactivate the grain once the current turn ends.
// Messages queued behind it activate a fresh instance.
func (gctx *GrainContext) Deactivate() {
	gctx.deactivate = true
}

func (gctx *GrainContext) getError() <-chan error {
	return gctx.err
}

func (gctx *GrainContext) getResponse() <-chan any {
	return gctx.response
}
