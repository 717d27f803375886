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
	"time"

	"github.com/zeebo/xxh3"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/internal/xsync"
	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/passivation"
	"github.com/systemorph/meshweaver/persistence"
)

// System is a virtual-actor runtime. Grains are addressed by identity, activated on
// their first message and deactivated when idle, so callers never manage lifecycles.
//
// Each identity is backed by at most one live instance and all messages to it are
// handled one at a time in arrival order.
type System struct {
	name        string
	logger      log.Logger
	askTimeout  time.Duration
	passivation passivation.Strategy
	stateStore  persistence.Store
	shardCount  int

	kinds      *xsync.Map[string, GrainFactory]
	shards     []*xsync.Map[string, *grainPID]
	creations  singleflight.Group
	passivator *passivationManager
	started    atomic.Bool
}

// NewSystem creates an actor system. Call Start before sending messages.
func NewSystem(name string, opts ...Option) (*System, error) {
	if name == "" {
		return nil, gerrors.ErrNameRequired
	}

	system := &System{
		name:        name,
		logger:      log.DefaultLogger,
		askTimeout:  DefaultAskTimeout,
		passivation: passivation.NewTimeBasedStrategy(DefaultPassivationTimeout),
		shardCount:  defaultShardCount,
		kinds:       xsync.NewMap[string, GrainFactory](),
	}

	for _, opt := range opts {
		opt.Apply(system)
	}

	if system.stateStore == nil {
		system.stateStore = persistence.NewMemoryStore()
	}

	system.shards = make([]*xsync.Map[string, *grainPID], system.shardCount)
	for i := range system.shards {
		system.shards[i] = xsync.NewMap[string, *grainPID]()
	}
	system.passivator = newPassivationManager(system.passivate)
	return system, nil
}

// Name returns the system name
func (s *System) Name() string {
	return s.name
}

// Logger returns the system logger
func (s *System) Logger() log.Logger {
	return s.logger
}

// StateStore returns the durable store handed to grains
func (s *System) StateStore() persistence.Store {
	return s.stateStore
}

// Running reports whether the system accepts messages.
func (s *System) Running() bool {
	return s.started.Load()
}

// Start starts the system.
func (s *System) Start(context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	s.passivator.Start()
	s.logger.Infof("actor system=(%s) started", s.name)
	return nil
}

// Stop deactivates every live grain in parallel and stops the system.
// Messages sent afterwards fail with ErrSystemNotStarted.
func (s *System) Stop(ctx context.Context) error {
	if !s.started.CompareAndSwap(true, false) {
		return nil
	}
	s.passivator.Stop()

	eg := new(errgroup.Group)
	for _, pid := range s.pids() {
		eg.Go(func() error {
			return s.deactivatePID(ctx, pid)
		})
	}
	err := eg.Wait()

	for _, shard := range s.shards {
		shard.Reset()
	}

	s.logger.Infof("actor system=(%s) stopped", s.name)
	return err
}

// RegisterGrainKind binds a factory to a grain kind. A later registration replaces the earlier one.
func (s *System) RegisterGrainKind(kind string, factory GrainFactory) error {
	if err := validateKind(kind); err != nil {
		return err
	}
	if factory == nil {
		return gerrors.NewErrGrainKindNotRegistered(kind)
	}
	s.kinds.Set(kind, factory)
	return nil
}

// AskGrain sends message to the grain and waits for its reply.
// A zero timeout uses the system ask timeout.
func (s *System) AskGrain(ctx context.Context, identity *GrainIdentity, message any, timeout time.Duration) (any, error) {
	if !s.started.Load() {
		return nil, gerrors.ErrSystemNotStarted
	}
	if err := validateMessage(identity, message); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = s.askTimeout
	}

	gctx := newGrainContext(ctx, s, identity, message, true)
	if err := s.dispatch(ctx, identity, gctx); err != nil {
		return nil, err
	}
	return await(ctx, gctx, timeout)
}

// TellGrain sends message to the grain without waiting.
func (s *System) TellGrain(ctx context.Context, identity *GrainIdentity, message any) error {
	if !s.started.Load() {
		return gerrors.ErrSystemNotStarted
	}
	if err := validateMessage(identity, message); err != nil {
		return err
	}
	return s.dispatch(ctx, identity, newGrainContext(ctx, s, identity, message, false))
}

// DeactivateGrain deactivates the grain when it is live. Deactivating an
// inactive grain is a no-op.
func (s *System) DeactivateGrain(ctx context.Context, identity *GrainIdentity) error {
	if !s.started.Load() {
		return gerrors.ErrSystemNotStarted
	}
	if identity == nil {
		return gerrors.NewErrInvalidMessage(gerrors.ErrNameRequired)
	}
	pid, ok := s.shardOf(identity).Get(identity.String())
	if !ok {
		return nil
	}
	return s.deactivatePID(ctx, pid)
}

// IsActive reports whether the grain is currently activated.
func (s *System) IsActive(identity *GrainIdentity) bool {
	if identity == nil {
		return false
	}
	pid, ok := s.shardOf(identity).Get(identity.String())
	return ok && pid.isActive()
}

// Grains returns the identities of the active grains.
func (s *System) Grains() []*GrainIdentity {
	pids := s.pids()
	identities := make([]*GrainIdentity, 0, len(pids))
	for _, pid := range pids {
		if pid.isActive() {
			identities = append(identities, pid.identity)
		}
	}
	return identities
}

func (s *System) deactivatePID(ctx context.Context, pid *grainPID) error {
	gctx := newGrainContext(ctx, s, pid.identity, new(deactivate), true)
	if !pid.receive(gctx) {
		return nil
	}
	_, err := await(ctx, gctx, s.askTimeout)
	return err
}

// dispatch hands gctx to the live pid of identity, creating it when needed.
func (s *System) dispatch(ctx context.Context, identity *GrainIdentity, gctx *GrainContext) error {
	for {
		pid, err := s.pidOf(ctx, identity)
		if err != nil {
			return err
		}
		if pid.receive(gctx) {
			return nil
		}
	}
}

// redispatch routes a message left behind by a terminated pid to its successor.
func (s *System) redispatch(gctx *GrainContext) {
	if !s.started.Load() {
		gctx.Err(gerrors.ErrSystemNotStarted)
		return
	}
	if err := s.dispatch(gctx.Context(), gctx.Self(), gctx); err != nil {
		gctx.Err(err)
	}
}

func (s *System) pidOf(ctx context.Context, identity *GrainIdentity) (*grainPID, error) {
	key := identity.String()
	shard := s.shardOf(identity)
	if pid, ok := shard.Get(key); ok {
		return pid, nil
	}

	value, err, _ := s.creations.Do(key, func() (any, error) {
		if pid, ok := shard.Get(key); ok {
			return pid, nil
		}

		factory, ok := s.kinds.Get(identity.Kind())
		if !ok {
			return nil, gerrors.NewErrGrainKindNotRegistered(identity.Kind())
		}

		grain, err := factory(ctx, identity)
		if err != nil {
			return nil, gerrors.NewErrGrainActivationFailure(err)
		}

		pid, _ := shard.GetOrSet(key, newGrainPID(identity, grain, s))
		return pid, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*grainPID), nil
}

func (s *System) removePID(pid *grainPID) {
	s.shardOf(pid.identity).DeleteFunc(pid.identity.String(), func(current *grainPID) bool {
		return current == pid
	})
}

func (s *System) pids() []*grainPID {
	var pids []*grainPID
	for _, shard := range s.shards {
		pids = append(pids, shard.Values()...)
	}
	return pids
}

func (s *System) shardOf(identity *GrainIdentity) *xsync.Map[string, *grainPID] {
	return s.shards[xxh3.HashString(identity.String())%uint64(len(s.shards))]
}

// passivate queues a deactivation behind the messages already in the mailbox.
func (s *System) passivate(pid *grainPID) {
	s.logger.Debugf("grain=(%s) idle, passivating with strategy=(%s)", pid.identity, s.passivation)
	pid.receive(newGrainContext(context.Background(), s, pid.identity, new(deactivate), false))
}

func await(ctx context.Context, gctx *GrainContext, timeout time.Duration) (any, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-gctx.getResponse():
		if !ok {
			return nil, nil
		}
		return resp, nil
	case err := <-gctx.getError():
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, gerrors.ErrRequestTimeout
	}
}

func validateKind(kind string) error {
	_, err := NewGrainIdentity(kind, "_")
	return err
}

func validateMessage(identity *GrainIdentity, message any) error {
	if identity == nil {
		return gerrors.NewErrInvalidMessage(gerrors.ErrNameRequired)
	}
	if message == nil {
		return gerrors.ErrInvalidMessage
	}
	return nil
}
