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

// Package routing decides how a delivery reaches its target address.
//
// The channel of the target is resolved through the address registry. A channel
// with a stream provider receives the delivery on its stream; otherwise the hub
// grain of the target is invoked directly and its result is propagated.
package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/systemorph/meshweaver/address"
	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/hub"
	"github.com/systemorph/meshweaver/internal/metric"
	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/stream"
)

// Registry resolves and advertises the delivery channel of addresses.
// It is satisfied by *registry.Client.
type Registry interface {
	Resolve(ctx context.Context, addr address.Address) (stream.Info, error)
	RegisterStream(ctx context.Context, addr address.Address, info stream.Info) error
	Unregister(ctx context.Context, addr address.Address) error
}

// Hubs delivers directly to the hub of an address.
// It is satisfied by *hosting.Client.
type Hubs interface {
	Deliver(ctx context.Context, delivery *hub.Delivery) (*hub.Result, error)
}

// Service routes deliveries. No delivery is retried.
type Service struct {
	identity  address.Address
	registry  Registry
	hubs      Hubs
	providers *stream.Providers
	metric    *metric.MeshMetric
	logger    log.Logger
}

// Option configures a Service
type Option func(*Service)

// WithIdentity sets the address of the local mesh. Addresses hosted on it are
// unwrapped before routing.
func WithIdentity(identity address.Address) Option {
	return func(s *Service) {
		s.identity = identity.Inner()
	}
}

// WithMetric sets the instruments deliveries are recorded on
func WithMetric(meshMetric *metric.MeshMetric) Option {
	return func(s *Service) {
		s.metric = meshMetric
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a Service
func NewService(registry Registry, hubs Hubs, providers *stream.Providers, opts ...Option) *Service {
	s := &Service{
		registry:  registry,
		hubs:      hubs,
		providers: providers,
		metric:    metric.NoopMeshMetric(),
		logger:    log.DefaultLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver routes delivery to its target.
//
// A delivery that cannot be routed yields a failed result carrying the reason.
// An error is returned only for an invalid delivery or a done context.
func (s *Service) Deliver(ctx context.Context, delivery *hub.Delivery) (*hub.Result, error) {
	if delivery == nil || delivery.Message == nil {
		return nil, gerrors.NewErrInvalidMessage(fmt.Errorf("delivery has no message"))
	}
	if err := delivery.Target.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	if target := s.unwrap(delivery.Target); !target.Equal(delivery.Target) {
		delivery = delivery.Retarget(target)
	}

	info, err := s.registry.Resolve(ctx, delivery.Target)
	if err != nil {
		return s.failed(ctx, start, delivery, err)
	}

	if !info.IsDirect() {
		if err := s.publish(ctx, info, delivery); err != nil {
			return s.failed(ctx, start, delivery, err)
		}
		s.metric.RecordDelivery(ctx, metric.RouteStream, time.Since(start))
		s.logger.Debugf("delivery=(%s) to %s published on %s", delivery.ID, delivery.Target, info)
		return hub.Forwarded(delivery.ID), nil
	}

	result, err := s.hubs.Deliver(ctx, delivery)
	if err != nil {
		return s.failed(ctx, start, delivery, err)
	}
	route := metric.RouteDirect
	if result.IsFailed() {
		route = metric.RouteFailed
	}
	s.metric.RecordDelivery(ctx, route, time.Since(start))
	return result, nil
}

func (s *Service) publish(ctx context.Context, info stream.Info, delivery *hub.Delivery) error {
	provider, err := s.provider(info.Provider)
	if err != nil {
		return err
	}
	_, err = provider.Publish(ctx, info.Namespace, delivery)
	return err
}

func (s *Service) provider(name string) (stream.Provider, error) {
	if s.providers == nil {
		return nil, gerrors.NewErrStreamProviderNotFound(name)
	}
	return s.providers.Get(name)
}

// unwrap drops the host of addresses hosted on the local mesh
func (s *Service) unwrap(addr address.Address) address.Address {
	host, ok := addr.Host()
	if !ok || s.identity.IsZero() || !host.Equal(s.identity) {
		return addr
	}
	return addr.Inner()
}

func (s *Service) failed(ctx context.Context, start time.Time, delivery *hub.Delivery, err error) (*hub.Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	s.metric.RecordDelivery(ctx, metric.RouteFailed, time.Since(start))
	if gerrors.IsConfigurationError(err) {
		s.logger.Errorf("delivery=(%s) to %s failed: %v", delivery.ID, delivery.Target, err)
	} else {
		s.logger.Warnf("delivery=(%s) to %s failed: %v", delivery.ID, delivery.Target, err)
	}
	return hub.Failed(delivery.ID, err.Error()), nil
}
