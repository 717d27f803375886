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

// Package registry hosts the AddressRegistry grain: a durable per-address cache of the
// channel an address is reached on.
//
// The first resolution of an address asks the catalog. A catalog miss still yields a
// cacheable answer, the direct channel, so an address is never resolved as unknown twice.
package registry

import (
	"context"
	"errors"

	"go.uber.org/atomic"

	"github.com/systemorph/meshweaver/actor"
	"github.com/systemorph/meshweaver/address"
	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/node"
	"github.com/systemorph/meshweaver/persistence"
	"github.com/systemorph/meshweaver/stream"
)

// GrainKind is the kind the AddressRegistry grain is registered under
const GrainKind = "address-registry"

// NodeLookup resolves the node serving an address.
// It is satisfied by *catalog.Catalog.
type NodeLookup interface {
	GetNode(ctx context.Context, addr address.Address) (*node.MeshNode, error)
}

// addressGrain caches the channel of the address it is named after.
type addressGrain struct {
	catalog NodeLookup
	lookups *atomic.Int64
	slot    *persistence.Slot[stream.Info]
	info    *stream.Info
}

var _ actor.Grain = (*addressGrain)(nil)

// SlotKey returns the durable slot key of the registry of addr
func SlotKey(addr address.Address) string {
	return GrainKind + "/" + addr.String()
}

func (g *addressGrain) OnActivate(ctx context.Context, props *actor.GrainProps) error {
	g.slot = persistence.NewSlot[stream.Info](props.StateStore(), GrainKind+"/"+props.Identity().Name())
	info, found, err := g.slot.Read(ctx)
	if err != nil {
		return err
	}
	if found {
		g.info = info
	}
	return nil
}

func (g *addressGrain) OnReceive(ctx *actor.GrainContext) {
	switch msg := ctx.Message().(type) {
	case *getInfo:
		ctx.Response(g.cached())
	case *resolveInfo:
		info, err := g.resolve(ctx.Context(), msg.address)
		if err != nil {
			ctx.Err(err)
			return
		}
		ctx.Response(info)
	case *registerStream:
		if err := g.register(ctx.Context(), msg.info); err != nil {
			ctx.Err(err)
			return
		}
		ctx.NoErr()
	case *unregister:
		if err := g.slot.Clear(ctx.Context()); err != nil {
			ctx.Err(err)
			return
		}
		g.info = nil
		ctx.Deactivate()
		ctx.NoErr()
	default:
		ctx.Unhandled()
	}
}

func (g *addressGrain) OnDeactivate(context.Context, *actor.GrainProps) error {
	g.info = nil
	return nil
}

func (g *addressGrain) cached() *stream.Info {
	if g.info == nil {
		return nil
	}
	info := *g.info
	return &info
}

func (g *addressGrain) resolve(ctx context.Context, addr address.Address) (*stream.Info, error) {
	if g.info != nil {
		return g.cached(), nil
	}

	g.lookups.Inc()
	var info stream.Info
	n, err := g.catalog.GetNode(ctx, addr)
	switch {
	case err == nil && n.RoutesByStream():
		info = stream.Info{
			AddressType: addr.Type,
			AddressID:   addr.ID,
			Provider:    n.StreamProvider,
			Namespace:   n.Namespace,
		}
	case err == nil:
		info = stream.DirectInfo(addr)
	case errors.Is(err, gerrors.ErrNodeNotFound):
		info = stream.DirectInfo(addr)
	default:
		return nil, err
	}

	if err := g.slot.Write(ctx, &info); err != nil {
		return nil, err
	}
	g.info = &info
	return g.cached(), nil
}

func (g *addressGrain) register(ctx context.Context, info stream.Info) error {
	if g.info != nil && *g.info == info {
		return nil
	}
	if err := g.slot.Write(ctx, &info); err != nil {
		return err
	}
	g.info = &info
	return nil
}
