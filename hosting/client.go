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

package hosting

import (
	"context"
	"fmt"
	"time"

	"github.com/systemorph/meshweaver/actor"
	"github.com/systemorph/meshweaver/address"
	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/hub"
	"github.com/systemorph/meshweaver/internal/metric"
	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/module"
	"github.com/systemorph/meshweaver/node"
	"github.com/systemorph/meshweaver/stream"
)

// NodeLookup resolves the node serving an address.
// It is satisfied by *catalog.Catalog.
type NodeLookup interface {
	GetNode(ctx context.Context, addr address.Address) (*node.MeshNode, error)
}

// Client talks to the hub grains of an actor system and carries what
// they need to build their hubs.
type Client struct {
	system    *actor.System
	catalog   NodeLookup
	source    module.Source
	statics   *hub.Registry
	providers *stream.Providers
	metric    *metric.MeshMetric
	logger    log.Logger
	timeout   time.Duration
	// resubscribeDelay is the pause before a stalled stream subscription restarts
	resubscribeDelay time.Duration
}

// DefaultResubscribeDelay is the pause before a stream hub whose state could not be
// persisted subscribes again from its last persisted token
const DefaultResubscribeDelay = time.Second

// ClientOption configures a Client
type ClientOption func(*Client)

// WithModuleSource sets where hub configuration modules are loaded from
func WithModuleSource(source module.Source) ClientOption {
	return func(c *Client) {
		c.source = source
	}
}

// WithStaticHubs sets the compiled-in hub factories
func WithStaticHubs(statics *hub.Registry) ClientOption {
	return func(c *Client) {
		c.statics = statics
	}
}

// WithProviders sets the stream providers stream hubs subscribe through
func WithProviders(providers *stream.Providers) ClientOption {
	return func(c *Client) {
		c.providers = providers
	}
}

// WithMetric sets the instruments activations and module loads are recorded on
func WithMetric(meshMetric *metric.MeshMetric) ClientOption {
	return func(c *Client) {
		c.metric = meshMetric
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout bounds every call made by the client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithResubscribeDelay sets the pause before a stalled stream subscription restarts
func WithResubscribeDelay(delay time.Duration) ClientOption {
	return func(c *Client) {
		c.resubscribeDelay = delay
	}
}

// NewClient creates a Client
func NewClient(system *actor.System, catalog NodeLookup, opts ...ClientOption) *Client {
	c := &Client{
		system:  system,
		catalog: catalog,
		metric:  metric.NoopMeshMetric(),
		logger:  log.DefaultLogger,

		resubscribeDelay: DefaultResubscribeDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register binds the hub grain kind to the actor system
func (c *Client) Register() error {
	return c.system.RegisterGrainKind(GrainKind, func(context.Context, *actor.GrainIdentity) (actor.Grain, error) {
		return &hubGrain{env: c}, nil
	})
}

// Deliver hands delivery to the hub of its target, activating it when needed.
// Hub failures come back as a failed result; activation and persistence
// failures come back as errors.
func (c *Client) Deliver(ctx context.Context, delivery *hub.Delivery) (*hub.Result, error) {
	if delivery == nil || delivery.Message == nil {
		return nil, gerrors.NewErrInvalidMessage(fmt.Errorf("delivery has no message"))
	}
	resp, err := c.ask(ctx, delivery.Target, &deliverMessage{delivery: delivery})
	if err != nil {
		return nil, err
	}
	result, ok := resp.(*hub.Result)
	if !ok {
		return nil, fmt.Errorf("unexpected delivery result %T", resp)
	}
	return result, nil
}

// Activate activates the hub of addr without delivering anything.
func (c *Client) Activate(ctx context.Context, addr address.Address) error {
	_, err := c.ask(ctx, addr, new(ensureActive))
	return err
}

// Deactivate deactivates the hub of addr. It is a no-op when the hub is not active.
func (c *Client) Deactivate(ctx context.Context, addr address.Address) error {
	identity, err := c.identity(addr)
	if err != nil {
		return err
	}
	return c.system.DeactivateGrain(ctx, identity)
}

// IsActive reports whether the hub of addr is active
func (c *Client) IsActive(addr address.Address) bool {
	identity, err := c.identity(addr)
	if err != nil {
		return false
	}
	return c.system.IsActive(identity)
}

// Activity returns the activity of the hub of addr, activating it when needed.
func (c *Client) Activity(ctx context.Context, addr address.Address) (*StreamActivity, error) {
	resp, err := c.ask(ctx, addr, new(getActivity))
	if err != nil {
		return nil, err
	}
	activity, ok := resp.(*StreamActivity)
	if !ok {
		return nil, fmt.Errorf("unexpected activity %T", resp)
	}
	return activity, nil
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
