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

// Package stream defines the named publish/subscribe channels used by the mesh.
//
// A stream is identified by a provider name and a namespace. Deliveries published on a
// stream are numbered with monotonically increasing sequence tokens; a subscriber can
// resume from the token it last processed.
package stream

import (
	"context"

	"github.com/systemorph/meshweaver/hub"
)

// Message is a delivery read from a stream
type Message struct {
	// Namespace is the stream the message was read from
	Namespace string
	// Sequence is the token of the message within its stream
	Sequence uint64
	// Delivery is the published delivery. Its Sequence field equals the message Sequence.
	Delivery *hub.Delivery
}

// Handler processes the messages of a subscription, in publish order.
// A returned error is logged by the provider; the message is not redelivered.
type Handler func(ctx context.Context, message *Message) error

// Subscription is a live registration of a Handler on a stream
type Subscription interface {
	// ID returns the unique id of the subscription
	ID() string
	// Namespace returns the stream the subscription reads
	Namespace() string
	// Unsubscribe stops the delivery of messages. It is idempotent and must not be
	// called from within the subscription handler.
	Unsubscribe(ctx context.Context) error
}

// Provider is a stream transport
type Provider interface {
	// Name returns the name deliveries refer to in stream.Info
	Name() string
	// Publish appends the delivery to the namespace stream and returns its sequence token
	Publish(ctx context.Context, namespace string, delivery *hub.Delivery) (uint64, error)
	// Subscribe delivers the messages published after the from token to handler.
	// At most one subscription is active per namespace: a new subscription supersedes the previous one.
	Subscribe(ctx context.Context, namespace string, from uint64, handler Handler) (Subscription, error)
	// Close stops every subscription and releases the transport
	Close(ctx context.Context) error
}
