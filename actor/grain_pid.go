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
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	uatomic "go.uber.org/atomic"

	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/passivation"
)

const (
	idle int32 = iota
	busy
)

// deactivate is the internal message that ends a grain's lifetime.
type deactivate struct{}

// grainPID owns one grain instance and serialises its turns.
type grainPID struct {
	identity *GrainIdentity
	grain    Grain
	system   *System
	props    *GrainProps
	mailbox  *grainMailbox

	// processing is idle or busy
	processing        uatomic.Int32
	activated         uatomic.Bool
	latestReceiveTime uatomic.Time

	// mu guards terminated. Producers hold the read lock while enqueuing so that
	// nothing lands in the mailbox once the pid is terminated.
	mu         sync.RWMutex
	terminated bool
}

func newGrainPID(identity *GrainIdentity, grain Grain, system *System) *grainPID {
	return &grainPID{
		identity: identity,
		grain:    grain,
		system:   system,
		props:    newGrainProps(identity, system),
		mailbox:  newGrainMailbox(),
	}
}

// receive enqueues the message and schedules a turn.
// It returns false when the pid is terminated and the sender must look the grain up again.
func (pid *grainPID) receive(gctx *GrainContext) bool {
	pid.mu.RLock()
	if pid.terminated {
		pid.mu.RUnlock()
		return false
	}
	pid.mailbox.Enqueue(gctx)
	pid.mu.RUnlock()

	pid.process()
	return true
}

func (pid *grainPID) isTerminated() bool {
	pid.mu.RLock()
	defer pid.mu.RUnlock()
	return pid.terminated
}

func (pid *grainPID) isActive() bool {
	return pid.activated.Load() && !pid.isTerminated()
}

func (pid *grainPID) process() {
	// only one loop drains the mailbox at a time
	if !pid.processing.CompareAndSwap(idle, busy) {
		return
	}

	go func() {
		for {
			if gctx := pid.mailbox.Dequeue(); gctx != nil {
				pid.handle(gctx)
			}

			pid.processing.Store(idle)

			// new messages may have arrived in the meantime
			if !pid.mailbox.IsEmpty() && pid.processing.CompareAndSwap(idle, busy) {
				continue
			}
			return
		}
	}()
}

func (pid *grainPID) handle(gctx *GrainContext) {
	if pid.isTerminated() {
		// left behind by a deactivation
		if _, ok := gctx.Message().(*deactivate); ok {
			gctx.NoErr()
			return
		}
		pid.system.redispatch(gctx)
		return
	}

	switch gctx.Message().(type) {
	case *deactivate:
		if err := pid.deactivate(gctx.Context()); err != nil {
			gctx.Err(err)
			return
		}
		gctx.NoErr()
	default:
		pid.handleGrainContext(gctx)
	}
}

func (pid *grainPID) handleGrainContext(gctx *GrainContext) {
	if !pid.activated.Load() {
		if err := pid.activate(gctx.Context()); err != nil {
			gctx.Err(err)
			// a failed activation never keeps the slot; the next message starts over
			pid.terminate()
			return
		}
	}

	pid.markActivity(time.Now())
	pid.onReceive(gctx)

	if gctx.deactivate {
		if err := pid.deactivate(gctx.Context()); err != nil {
			pid.system.logger.Errorf("grain=(%s) failed to deactivate: %v", pid.identity, err)
		}
	}
}

func (pid *grainPID) onReceive(gctx *GrainContext) {
	defer pid.recovery(gctx)
	pid.grain.OnReceive(gctx)
}

func (pid *grainPID) activate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = gerrors.NewPanicError(fmt.Errorf("%v", r))
		}
		if err != nil {
			pid.system.logger.Errorf("grain=(%s) failed to activate: %v", pid.identity, err)
			err = gerrors.NewErrGrainActivationFailure(err)
		}
	}()

	if err := pid.grain.OnActivate(context.WithoutCancel(ctx), pid.props); err != nil {
		return err
	}

	pid.activated.Store(true)
	pid.markActivity(time.Now())
	if timeout, ok := passivation.Timeout(pid.passivationStrategy()); ok {
		pid.system.passivator.Register(pid, timeout)
	}

	pid.system.logger.Debugf("grain=(%s) activated", pid.identity)
	return nil
}

// deactivate runs OnDeactivate when the grain was active, then terminates the pid.
// The pid stays in the grain table until OnDeactivate returns so that a successor
// never activates while its predecessor is still releasing resources.
func (pid *grainPID) deactivate(ctx context.Context) (err error) {
	pid.system.passivator.Unregister(pid)
	defer pid.terminate()

	if !pid.activated.Swap(false) {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = gerrors.NewPanicError(fmt.Errorf("%v", r))
		}
		if err != nil {
			pid.system.logger.Errorf("grain=(%s) failed to deactivate: %v", pid.identity, err)
			err = gerrors.NewErrGrainDeactivationFailure(err)
		}
	}()

	if err := pid.grain.OnDeactivate(context.WithoutCancel(ctx), pid.props); err != nil {
		return err
	}

	pid.system.logger.Debugf("grain=(%s) deactivated", pid.identity)
	return nil
}

// terminate stops the pid from accepting messages and removes it from the grain table.
func (pid *grainPID) terminate() {
	pid.mu.Lock()
	defer pid.mu.Unlock()
	if pid.terminated {
		return
	}
	pid.terminated = true
	pid.system.removePID(pid)
}

func (pid *grainPID) passivationStrategy() passivation.Strategy {
	if p, ok := pid.grain.(Passivating); ok {
		if strategy := p.PassivationStrategy(); strategy != nil {
			return strategy
		}
	}
	return pid.system.passivation
}

func (pid *grainPID) markActivity(at time.Time) {
	pid.latestReceiveTime.Store(at)
}

// recovery turns a panic raised while handling a message into a PanicError reply.
func (pid *grainPID) recovery(received *GrainContext) {
	if r := recover(); r != nil {
		pid.system.logger.Errorf("grain=(%s) panicked: %v", pid.identity, r)
		switch err, ok := r.(error); {
		case ok:
			var pe *gerrors.PanicError
			if errors.As(err, &pe) {
				received.Err(pe)
				return
			}

			pc, fn, line, _ := runtime.Caller(2)
			received.Err(gerrors.NewPanicError(
				fmt.Errorf("%w at %s[%s:%d]", err, runtime.FuncForPC(pc).Name(), fn, line),
			))
		default:
			pc, fn, line, _ := runtime.Caller(2)
			received.Err(gerrors.NewPanicError(
				fmt.Errorf("%#v at %s[%s:%d]", r, runtime.FuncForPC(pc).Name(), fn, line),
			))
		}
	}
}
