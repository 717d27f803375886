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

package registry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/atomic"

	"github.com/systemorph/meshweaver/actor"
	"github.com/systemorph/meshweaver/address"
	"github.com/systemorph/meshweaver/stream"
)

// Client talks to the AddressRegistry grains of an actor system.
type Client struct {
	system  *actor.System
	catalog NodeLookup
	timeout time.Duration
	lookups atomic.Int64
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithTimeout bounds every call made by the client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a Client resolving cache misses through catalog
func NewClient(system *actor.System, catalog NodeLookup, opts ...ClientOption) *Client {
	c := &Client{system: system, catalog: catalog}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register binds the AddressRegistry grain kind to the actor system
func (c *Client) Register() error {
	return c.system.RegisterGrainKind(GrainKind, func(context.Context, *actor.GrainIdentity) (actor.Grain, error) {
		return &addressGrain{catalog: c.catalog, lookups: &c.lookups}, nil
	})
}

// CatalogLookups returns how many resolutions reached the catalog
func (c *Client) CatalogLookups() int64 {
	return c.lookups.Load()
}

// Get returns the cached channel of addr, nil when nothing is cached.
func (c *Client) Get(ctx context.Context, addr address.Address) (*stream.Info, error) {
	resp, err := c.ask(ctx, addr, new(getInfo))
	if err != nil {
		return nil, err
	}
	info, _ := resp.(*stream.Info)
	return info, nil
}

// Resolve returns the channel of addr, consulting the catalog only on the first call.
func (c *Client) Resolve(ctx context.Context, addr address.Address) (stream.Info, error) {
	resp, err := c.ask(ctx, addr, &resolveInfo{address: addr})
	if err != nil {
		return stream.Info{}, err
	}
	info, ok := resp.(*stream.Info)
	if !ok || info == nil {
		return stream.Info{}, fmt.Errorf("unexpected resolution %T for %s", resp, addr)
	}
	return *info, nil
}

// RegisterStream overwrites the channel of addr
func (c *Client) RegisterStream(ctx context.Context, addr address.Address, info stream.Info) error {
	_, err := c.ask(ctx, addr, &registerStream{info: info})
	return err
}

// Unregister clears the channel of addr and lets its grain passivate
func (c *Client) Unregister(ctx context.Context, addr address.Address) error {
	_, err := c.ask(ctx, addr, new(unregister))
	return err
}

func (c *Client) ask(ctx context.Context, addr address.Address, message any) (any, error) {
	identity, err := c.identity(addr)
	if err != nil {
		return nil, err
	}
	return c.system.AskGrain(ctx, identity, message, c.timeout)
}

func (c *Client) identity(addr address.Address) (*actor.GrainIdentity, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	return actor.NewGrainIdentity(GrainKind, addr.String())
}
