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
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/systemorph/meshweaver/passivation"
)

type increment struct{}
type getCount struct{}
type explode struct{}
type silence struct{}
type leave struct{}
type unknown struct{}

// probe records lifecycle calls across grain instances.
type probe struct {
	activations   atomic.Int32
	deactivations atomic.Int32
	failActivate  atomic.Bool
	mu            sync.Mutex
	identities    []string
}

func (p *probe) factory() GrainFactory {
	return func(context.Context, *GrainIdentity) (Grain, error) {
		return &counterGrain{probe: p}, nil
	}
}

type counterGrain struct {
	probe *probe
	count int
}

var _ Grain = (*counterGrain)(nil)

func (g *counterGrain) OnActivate(_ context.Context, props *GrainProps) error {
	if g.probe.failActivate.Load() {
		return errors.New("activation refused")
	}
	g.probe.activations.Inc()
	g.probe.mu.Lock()
	g.probe.identities = append(g.probe.identities, props.Identity().String())
	g.probe.mu.Unlock()
	// widen the window for concurrent first messages
	time.Sleep(10 * time.Millisecond)
	return nil
}

func (g *counterGrain) OnReceive(ctx *GrainContext) {
	switch ctx.Message().(type) {
	case *increment:
		g.count++
		ctx.NoErr()
	case *getCount:
		ctx.Response(g.count)
	case *explode:
		panic("boom")
	case *silence:
	case *leave:
		ctx.Deactivate()
		ctx.NoErr()
	default:
		ctx.Unhandled()
	}
}

func (g *counterGrain) OnDeactivate(context.Context, *GrainProps) error {
	g.probe.deactivations.Inc()
	return nil
}

// pinnedGrain never passivates on idleness
type pinnedGrain struct {
	counterGrain
}

var _ Passivating = (*pinnedGrain)(nil)

func (g *pinnedGrain) PassivationStrategy() passivation.Strategy {
	return passivation.NewLongLivedStrategy()
}
