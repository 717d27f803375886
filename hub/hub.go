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

// Package hub defines the contract between the mesh and the message hubs it hosts.
//
// A hub is the message processor living behind an address. The mesh builds it
// through a Factory when the address is first activated, feeds it deliveries one at a
// time and disposes it when the address is deactivated.
package hub

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"

	"github.com/systemorph/meshweaver/address"
	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/node"
)

// Hub processes the deliveries targeting one address.
//
// DeliverMessage is never called concurrently for the same hub. A returned error is
// counted against the hub and reported as a failed delivery; it does not stop the hub.
// Dispose must be idempotent and return once the hub has released its resources.
type Hub interface {
	DeliverMessage(ctx context.Context, delivery *Delivery) error
	Dispose(ctx context.Context) error
}

// Config is handed to a Factory when a hub is built
type Config struct {
	// Address is the address the hub serves
	Address address.Address
	// Node is the catalog descriptor the hub is built from
	Node *node.MeshNode
	// Logger is scoped to the hub address
	Logger log.Logger
}

// Factory builds the hub of an address
type Factory func(ctx context.Context, config *Config) (Hub, error)

// Delivery is a message on its way to an address
type Delivery struct {
	// ID uniquely identifies the delivery
	ID string
	// Sender is the address the message originates from; it may be the zero address
	Sender address.Address
	// Target is the address the message is sent to
	Target address.Address
	// Message is the payload
	Message proto.Message
	// Properties carries application headers
	Properties map[string]string
	// Sequence is the stream token the delivery was read at; zero for direct deliveries
	Sequence uint64
}

// NewDelivery creates a delivery with a fresh id
func NewDelivery(target address.Address, message proto.Message) *Delivery {
	return &Delivery{
		ID:      uuid.NewString(),
		Target:  target,
		Message: message,
	}
}

// WithSender sets the sender and returns the delivery
func (d *Delivery) WithSender(sender address.Address) *Delivery {
	d.Sender = sender
	return d
}

// WithProperty sets an application header and returns the delivery
func (d *Delivery) WithProperty(key, value string) *Delivery {
	if d.Properties == nil {
		d.Properties = make(map[string]string)
	}
	d.Properties[key] = value
	return d
}

// MessageType returns the full protobuf name of the payload
func (d *Delivery) MessageType() string {
	if d == nil || d.Message == nil {
		return ""
	}
	return string(d.Message.ProtoReflect().Descriptor().FullName())
}

// Retarget returns a shallow copy of the delivery aimed at target
func (d *Delivery) Retarget(target address.Address) *Delivery {
	clone := *d
	clone.Target = target
	return &clone
}
