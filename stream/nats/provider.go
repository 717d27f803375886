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

// Package nats provides a stream.Provider backed by NATS JetStream.
//
// Every namespace maps onto a subject of a single JetStream stream. Sequence tokens are
// the JetStream stream sequences, so they increase monotonically within a namespace
// without being contiguous.
package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/atomic"

	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/hub"
	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/stream"
)

const (
	// DefaultName is the provider name used when none is configured
	DefaultName          = "nats"
	defaultStreamName    = "MESH"
	defaultSubjectPrefix = "mesh"
	maxRetries           = 5
)

// Config defines the JetStream provider configuration
type Config struct {
	// URL is the NATS server url
	URL string
	// Name is the provider name. Defaults to "nats".
	Name string
	// StreamName is the JetStream stream holding every namespace. Defaults to "MESH".
	StreamName string
	// SubjectPrefix prefixes the namespace subjects. Defaults to "mesh".
	SubjectPrefix string
	// MaxAge bounds the retention of messages; zero keeps them forever
	MaxAge time.Duration
	// InMemory keeps the stream in memory instead of on disk
	InMemory bool
	// Logger is the provider logger
	Logger log.Logger
}

func (c *Config) sanitize() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.StreamName == "" {
		c.StreamName = defaultStreamName
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = defaultSubjectPrefix
	}
	if c.Logger == nil {
		c.Logger = log.DefaultLogger
	}
}

// Provider implements stream.Provider on JetStream
type Provider struct {
	config     Config
	connection *nats.Conn
	js         jetstream.JetStream
	logger     log.Logger

	mu            sync.Mutex
	subscriptions map[string]*subscription
	closed        *atomic.Bool
}

var _ stream.Provider = (*Provider)(nil)

// Open connects to NATS with an exponential backoff and makes sure the stream exists
func Open(ctx context.Context, config Config) (*Provider, error) {
	config.sanitize()

	opts := nats.GetDefaultOptions()
	opts.Url = config.URL
	opts.Name = config.Name
	opts.ReconnectWait = 2 * time.Second
	opts.MaxReconnect = -1

	var connection *nats.Conn
	// try a maximum of five times, with an initial delay of 100 ms and a maximum delay of opts.ReconnectWait
	retrier := retry.NewRetrier(maxRetries, 100*time.Millisecond, opts.ReconnectWait)
	if err := retrier.RunContext(ctx, func(context.Context) error {
		var err error
		connection, err = opts.Connect()
		return err
	}); err != nil {
		return nil, fmt.Errorf("nats: failed to connect to %s: %w", config.URL, err)
	}

	js, err := jetstream.New(connection)
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("nats: failed to create jetstream context: %w", err)
	}

	storage := jetstream.FileStorage
	if config.InMemory {
		storage = jetstream.MemoryStorage
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     config.StreamName,
		Subjects: []string{config.SubjectPrefix + ".>"},
		Storage:  storage,
		MaxAge:   config.MaxAge,
	}); err != nil {
		connection.Close()
		return nil, fmt.Errorf("nats: failed to create stream %s: %w", config.StreamName, err)
	}

	return &Provider{
		config:        config,
		connection:    connection,
		js:            js,
		logger:        config.Logger,
		subscriptions: make(map[string]*subscription),
		closed:        atomic.NewBool(false),
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.config.Name
}

// Publish appends the delivery to the namespace subject and returns its stream sequence.
// The delivery id doubles as the JetStream message id, so a retried publish is deduplicated.
func (p *Provider) Publish(ctx context.Context, namespace string, delivery *hub.Delivery) (uint64, error) {
	if p.closed.Load() {
		return 0, gerrors.ErrProviderClosed
	}

	if delivery == nil || delivery.Message == nil {
		return 0, gerrors.NewErrInvalidMessage(fmt.Errorf("empty delivery published on %s", namespace))
	}

	msg, err := encode(subject(p.config.SubjectPrefix, namespace), delivery)
	if err != nil {
		return 0, gerrors.NewErrInvalidMessage(err)
	}

	ack, err := p.js.PublishMsg(ctx, msg, jetstream.WithMsgID(delivery.ID))
	if err != nil {
		return 0, fmt.Errorf("nats: failed to publish on %s: %w", namespace, err)
	}
	return ack.Sequence, nil
}

// Subscribe starts an ordered consumer on the namespace subject from the message following from
func (p *Provider) Subscribe(ctx context.Context, namespace string, from uint64, handler stream.Handler) (stream.Subscription, error) {
	if p.closed.Load() {
		return nil, gerrors.ErrProviderClosed
	}

	config := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject(p.config.SubjectPrefix, namespace)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}

	if from > 0 {
		config.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		config.OptStartSeq = from + 1
	}

	consumer, err := p.js.OrderedConsumer(ctx, p.config.StreamName, config)
	if err != nil {
		return nil, fmt.Errorf("nats: failed to create consumer on %s: %w", namespace, err)
	}

	sub := &subscription{
		id:        uuid.NewString(),
		namespace: namespace,
		provider:  p,
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sub.cancel = cancel
	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		p.handle(runCtx, sub, msg, handler)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("nats: failed to consume %s: %w", namespace, err)
	}
	sub.consumeCtx = consumeCtx

	p.mu.Lock()
	previous := p.subscriptions[namespace]
	p.subscriptions[namespace] = sub
	p.mu.Unlock()

	if previous != nil {
		previous.stop(ctx)
		p.logger.Debugf("subscription=(%s) on %s/%s superseded by subscription=(%s)", previous.id, p.Name(), namespace, sub.id)
	}
	return sub, nil
}

// Close stops every subscription and closes the connection
func (p *Provider) Close(ctx context.Context) error {
	if p.closed.Swap(true) {
		return nil
	}

	p.mu.Lock()
	subscriptions := make([]*subscription, 0, len(p.subscriptions))
	for _, sub := range p.subscriptions {
		subscriptions = append(subscriptions, sub)
	}
	clear(p.subscriptions)
	p.mu.Unlock()

	for _, sub := range subscriptions {
		sub.stop(ctx)
	}

	if err := p.connection.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		p.connection.Close()
		return err
	}
	return nil
}

func (p *Provider) handle(ctx context.Context, sub *subscription, msg jetstream.Msg, handler stream.Handler) {
	if ctx.Err() != nil {
		return
	}

	metadata, err := msg.Metadata()
	if err != nil {
		p.logger.Errorf("subscription=(%s) on %s received a message without metadata: %v", sub.id, sub.namespace, err)
		return
	}

	sequence := metadata.Sequence.Stream
	delivery, err := decode(msg.Headers(), msg.Data(), sequence)
	if err != nil {
		p.logger.Errorf("subscription=(%s) on %s failed to decode message=(%d): %v", sub.id, sub.namespace, sequence, err)
		return
	}

	message := &stream.Message{Namespace: sub.namespace, Sequence: sequence, Delivery: delivery}
	if err := handler(ctx, message); err != nil {
		p.logger.Errorf("subscription=(%s) on %s failed to handle message=(%d): %v", sub.id, sub.namespace, sequence, err)
	}
}

type subscription struct {
	id         string
	namespace  string
	provider   *Provider
	consumeCtx jetstream.ConsumeContext
	cancel     context.CancelFunc
	stopOnce   sync.Once
}

var _ stream.Subscription = (*subscription)(nil)

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Namespace() string {
	return s.namespace
}

// Unsubscribe stops the consumer
func (s *subscription) Unsubscribe(ctx context.Context) error {
	s.provider.mu.Lock()
	if s.provider.subscriptions[s.namespace] == s {
		delete(s.provider.subscriptions, s.namespace)
	}
	s.provider.mu.Unlock()

	s.stop(ctx)
	return nil
}

func (s *subscription) stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		s.cancel()
		s.consumeCtx.Stop()
		select {
		case <-s.consumeCtx.Closed():
		case <-ctx.Done():
		}
	})
}
