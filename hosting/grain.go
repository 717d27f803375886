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

// Package hosting hosts the hub grain: the per-address owner of a live hub.
//
// The grain builds its hub from the catalog node of its address on activation,
// feeds it deliveries one at a time while keeping durable activity counters and
// tears everything down on deactivation, unloading the module it loaded.
package hosting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/systemorph/meshweaver/actor"
	"github.com/systemorph/meshweaver/address"
	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/hub"
	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/module"
	"github.com/systemorph/meshweaver/node"
	"github.com/systemorph/meshweaver/passivation"
	"github.com/systemorph/meshweaver/persistence"
	"github.com/systemorph/meshweaver/stream"
)

// GrainKind is the kind the hub grain is registered under
const GrainKind = "hub"

// SlotKey returns the durable slot key of the hub grain of addr
func SlotKey(addr address.Address) string {
	return GrainKind + "/" + addr.String()
}

type hubGrain struct {
	env *Client

	address      address.Address
	node         *node.MeshNode
	loader       module.Loader
	hub          hub.Hub
	subscription stream.Subscription
	slot         *persistence.Slot[StreamActivity]
	activity     *StreamActivity
	logger       log.Logger

	// generation tags the deliveries of the current subscription; it moves on every stall
	// so deliveries still queued from a dropped subscription are ignored
	generation  uint64
	props       *actor.GrainProps
	resubscribe *time.Timer
}

var (
	_ actor.Grain       = (*hubGrain)(nil)
	_ actor.Passivating = (*hubGrain)(nil)
)

func (g *hubGrain) OnActivate(ctx context.Context, props *actor.GrainProps) (err error) {
	addr, err := address.Parse(props.Identity().Name())
	if err != nil {
		return err
	}
	g.address = addr
	g.logger = g.env.logger.With("address", addr.String())

	n, err := g.env.catalog.GetNode(ctx, addr)
	if err != nil {
		if errors.Is(err, gerrors.ErrNodeNotFound) {
			return gerrors.NewErrHubConfigurationMissing(addr.String())
		}
		return err
	}
	g.node = n

	// nothing half built survives a failed activation
	defer func() {
		if err != nil {
			err = multierr.Append(err, g.release(ctx))
		}
	}()

	factory, err := g.factory(ctx, n)
	if err != nil {
		return err
	}

	h, err := factory(ctx, &hub.Config{Address: addr, Node: n.Clone(), Logger: g.logger})
	if err != nil {
		return fmt.Errorf("failed to build hub of %s: %w", addr, err)
	}
	if h == nil {
		return fmt.Errorf("failed to build hub of %s: factory returned no hub", addr)
	}
	g.hub = h

	g.slot = persistence.NewSlot[StreamActivity](props.StateStore(), SlotKey(addr))
	previous, _, err := g.slot.Read(ctx)
	if err != nil {
		return err
	}

	g.activity = &StreamActivity{EventCounter: make(map[string]int)}
	if previous != nil {
		g.activity.Token = previous.Token
	}
	if err := g.persist(ctx); err != nil {
		return err
	}

	if n.RoutesByStream() {
		if err := g.subscribe(ctx, props); err != nil {
			return err
		}
	}

	g.env.metric.RecordHubActivation(ctx)
	g.logger.Infof("hub activated from node=(%s) instantiation=(%s)", n.Key, n.InstantiationKind)
	return nil
}

func (g *hubGrain) OnReceive(ctx *actor.GrainContext) {
	switch msg := ctx.Message().(type) {
	case *deliverMessage:
		g.deliver(ctx, msg)
	case *getActivity:
		ctx.Response(g.activity.Clone())
	case *ensureActive:
		ctx.NoErr()
	case *resubscribe:
		g.restart(ctx.Context(), msg)
		ctx.NoErr()
	default:
		ctx.Unhandled()
	}
}

// OnDeactivate runs every teardown step even when one fails.
func (g *hubGrain) OnDeactivate(ctx context.Context, _ *actor.GrainProps) error {
	err := g.release(ctx)
	if g.activity != nil {
		g.activity.IsDeactivated = true
		err = multierr.Append(err, g.persist(ctx))
	}
	if err != nil {
		g.logger.Errorf("hub deactivated with errors: %v", err)
		return err
	}
	g.logger.Infof("hub deactivated")
	return nil
}

// PassivationStrategy keeps stream hubs alive: their subscription is what feeds them.
func (g *hubGrain) PassivationStrategy() passivation.Strategy {
	if g.node != nil && g.node.RoutesByStream() {
		return passivation.NewLongLivedStrategy()
	}
	return nil
}

func (g *hubGrain) factory(ctx context.Context, n *node.MeshNode) (hub.Factory, error) {
	switch n.InstantiationKind {
	case node.InstantiationKindHubConfiguration:
		if n.ModuleLocation == "" {
			return g.staticFactory(n)
		}
		return g.moduleFactory(ctx, n)
	case node.InstantiationKindStatic:
		return g.staticFactory(n)
	default:
		return nil, gerrors.NewErrHubConfigurationMissing(g.address.String())
	}
}

func (g *hubGrain) moduleFactory(ctx context.Context, n *node.MeshNode) (hub.Factory, error) {
	if g.env.source == nil {
		return nil, gerrors.NewModuleLoadError(n.ModuleLocation, gerrors.ErrModuleSourceNotFound)
	}

	g.loader = g.env.source.NewLoader()
	m, err := g.loader.Load(ctx, n.ModuleLocation)
	if err != nil {
		g.logger.Errorf("failed to load module=(%s): %v", n.ModuleLocation, err)
		var loadErr *gerrors.ModuleLoadError
		if errors.As(err, &loadErr) {
			return nil, err
		}
		return nil, gerrors.NewModuleLoadError(n.ModuleLocation, err)
	}
	g.env.metric.RecordModuleLoad(ctx)

	factory, ok := m.HubFactory(n.StartupKey())
	if !ok || factory == nil {
		return nil, gerrors.NewErrStartupNotFound(n.StartupKey(), n.ModuleLocation)
	}
	return factory, nil
}

func (g *hubGrain) staticFactory(n *node.MeshNode) (hub.Factory, error) {
	if g.env.statics != nil {
		if factory, ok := g.env.statics.Lookup(n.StartupKey()); ok && factory != nil {
			return factory, nil
		}
	}
	return nil, gerrors.NewErrStartupNotFound(n.StartupKey(), "static hubs")
}

func (g *hubGrain) subscribe(ctx context.Context, props *actor.GrainProps) error {
	if g.env.providers == nil {
		return gerrors.NewErrStreamProviderNotFound(g.node.StreamProvider)
	}
	provider, err := g.env.providers.Get(g.node.StreamProvider)
	if err != nil {
		return err
	}

	g.props = props
	system, self, generation := props.System(), props.Identity(), g.generation
	handler := func(ctx context.Context, message *stream.Message) error {
		delivery := message.Delivery
		if delivery.Sequence != message.Sequence {
			delivery = delivery.Retarget(delivery.Target)
			delivery.Sequence = message.Sequence
		}
		return system.TellGrain(context.WithoutCancel(ctx), self, &deliverMessage{delivery: delivery, fromStream: true, generation: generation})
	}

	subscription, err := provider.Subscribe(ctx, g.node.Namespace, g.activity.Token, handler)
	if err != nil {
		return err
	}
	g.subscription = subscription
	g.logger.Debugf("hub subscribed to %s:%s from token=(%d)", g.node.StreamProvider, g.node.Namespace, g.activity.Token)
	return nil
}

func (g *hubGrain) deliver(ctx *actor.GrainContext, msg *deliverMessage) {
	delivery := msg.delivery
	if g.hub == nil {
		ctx.Response(hub.Failed(delivery.ID, gerrors.ErrHubNotStarted.Error()))
		ctx.Deactivate()
		return
	}

	// replayed by a resumed subscription, or left over from a stalled one
	if msg.fromStream && (msg.generation != g.generation || delivery.Sequence <= g.activity.Token) {
		ctx.NoErr()
		return
	}

	goCtx := ctx.Context()
	messageType := delivery.MessageType()
	g.activity.EventCounter[messageType]++
	if err := g.persist(goCtx); err != nil {
		if g.activity.EventCounter[messageType]--; g.activity.EventCounter[messageType] == 0 {
			delete(g.activity.EventCounter, messageType)
		}
		if msg.fromStream {
			g.stall(goCtx, delivery, err)
		}
		ctx.Err(err)
		return
	}

	forwardErr := g.forward(goCtx, delivery)
	if forwardErr != nil {
		g.activity.ErrorCounter++
		g.logger.Warnf("hub failed delivery=(%s) of type=(%s): %v", delivery.ID, messageType, forwardErr)
	}
	token := g.activity.Token
	if msg.fromStream {
		g.activity.Token = delivery.Sequence
	}
	if forwardErr != nil || msg.fromStream {
		if err := g.persist(goCtx); err != nil {
			if msg.fromStream {
				g.activity.Token = token
				g.stall(goCtx, delivery, err)
			}
			ctx.Err(err)
			return
		}
	}

	if forwardErr != nil {
		ctx.Response(hub.Failed(delivery.ID, forwardErr.Error()))
		return
	}
	ctx.Response(hub.Forwarded(delivery.ID))
}

// forward hands the delivery to the hub, turning a panic into an error.
func (g *hubGrain) forward(ctx context.Context, delivery *hub.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = gerrors.NewPanicError(fmt.Errorf("%v", r))
		}
	}()
	return g.hub.DeliverMessage(ctx, delivery)
}

// stall drops the current subscription after a stream delivery could not be recorded.
// The subscription restarts from the persisted token once the delay elapses, so the
// delivery comes back instead of being skipped by the next one.
func (g *hubGrain) stall(ctx context.Context, delivery *hub.Delivery, cause error) {
	g.logger.Errorf("failed to record stream delivery=(%s) sequence=(%d), resuming from token=(%d) in %s: %v",
		delivery.ID, delivery.Sequence, g.activity.Token, g.env.resubscribeDelay, cause)

	g.generation++
	if g.subscription != nil {
		if err := g.subscription.Unsubscribe(ctx); err != nil {
			g.logger.Warnf("failed to drop stalled subscription: %v", err)
		}
		g.subscription = nil
	}
	g.schedule()
}

func (g *hubGrain) schedule() {
	if g.resubscribe != nil {
		g.resubscribe.Stop()
	}
	system, self, generation := g.props.System(), g.props.Identity(), g.generation
	g.resubscribe = time.AfterFunc(g.env.resubscribeDelay, func() {
		_ = system.TellGrain(context.Background(), self, &resubscribe{generation: generation})
	})
}

func (g *hubGrain) restart(ctx context.Context, msg *resubscribe) {
	if msg.generation != g.generation || g.hub == nil || g.subscription != nil {
		return
	}
	g.resubscribe = nil
	if err := g.subscribe(ctx, g.props); err != nil {
		g.logger.Errorf("failed to resume stream subscription from token=(%d): %v", g.activity.Token, err)
		g.schedule()
	}
}

// release cancels the subscription, disposes the hub and unloads the module.
// Each resource is released at most once.
func (g *hubGrain) release(ctx context.Context) error {
	var err error
	if g.resubscribe != nil {
		g.resubscribe.Stop()
		g.resubscribe = nil
	}
	if g.subscription != nil {
		err = multierr.Append(err, g.subscription.Unsubscribe(ctx))
		g.subscription = nil
	}
	if g.hub != nil {
		err = multierr.Append(err, g.hub.Dispose(ctx))
		g.hub = nil
	}
	if g.loader != nil {
		err = multierr.Append(err, g.loader.Unload(ctx))
		g.loader = nil
	}
	return err
}

func (g *hubGrain) persist(ctx context.Context) error {
	return g.slot.Write(ctx, g.activity)
}
