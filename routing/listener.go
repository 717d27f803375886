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

package routing

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/systemorph/meshweaver/address"
	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/stream"
)

type listenerConfig struct {
	from uint64
}

// ListenerOption configures a stream listener
type ListenerOption func(*listenerConfig)

// WithFromToken starts the listener after the given stream token
func WithFromToken(token uint64) ListenerOption {
	return func(config *listenerConfig) {
		config.from = token
	}
}

// Listener is a stream listener registered for an address
type Listener struct {
	address      address.Address
	info         stream.Info
	subscription stream.Subscription
	registry     Registry

	once sync.Once
	err  error
}

// Address returns the address the listener advertises
func (l *Listener) Address() address.Address {
	return l.address
}

// Info returns the stream the listener reads
func (l *Listener) Info() stream.Info {
	return l.info
}

// Dispose unsubscribes and unregisters the address. Only the first call has an effect.
func (l *Listener) Dispose(ctx context.Context) error {
	l.once.Do(func() {
		l.err = multierr.Combine(
			l.subscription.Unsubscribe(ctx),
			l.registry.Unregister(ctx, l.address),
		)
	})
	return l.err
}

// RegisterStreamListener advertises info as the channel of addr and subscribes
// handler to it. Disposing the returned listener undoes both.
func (s *Service) RegisterStreamListener(ctx context.Context, addr address.Address, info stream.Info, handler stream.Handler, opts ...ListenerOption) (*Listener, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, gerrors.NewErrInvalidMessage(fmt.Errorf("stream listener of %s has no handler", addr))
	}
	if info.IsDirect() {
		return nil, gerrors.NewErrStreamProviderNotFound(info.Provider)
	}

	config := new(listenerConfig)
	for _, opt := range opts {
		opt(config)
	}

	provider, err := s.provider(info.Provider)
	if err != nil {
		return nil, err
	}

	if err := s.registry.RegisterStream(ctx, addr, info); err != nil {
		return nil, err
	}

	subscription, err := provider.Subscribe(ctx, info.Namespace, config.from, handler)
	if err != nil {
		return nil, multierr.Append(err, s.registry.Unregister(ctx, addr))
	}

	s.logger.Infof("stream listener of %s registered on %s", addr, info)
	return &Listener{
		address:      addr,
		info:         info,
		subscription: subscription,
		registry:     s.registry,
	}, nil
}
