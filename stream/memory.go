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

package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/hub"
	"github.com/systemorph/meshweaver/log"
)

const (
	// MemoryProviderName is the default name of the in-memory provider
	MemoryProviderName = "memory"
	// DefaultRetention is the number of messages kept per namespace by the in-memory provider
	DefaultRetention = 4096
)

// MemoryOption configures the in-memory provider
type MemoryOption interface {
	// Apply sets the Option value of a config.
	Apply(provider *MemoryProvider)
}

var _ MemoryOption = MemoryOptionFunc(nil)

// MemoryOptionFunc implements the MemoryOption interface.
type MemoryOptionFunc func(provider *MemoryProvider)

// Apply applies the option
func (f MemoryOptionFunc) Apply(provider *MemoryProvider) {
	f(provider)
}

// WithName overrides the provider name
func WithName(name string) MemoryOption {
	return MemoryOptionFunc(func(provider *MemoryProvider) {
		provider.name = name
	})
}

// WithRetention sets how many messages each namespace keeps for replay
func WithRetention(retention int) MemoryOption {
	return MemoryOptionFunc(func(provider *MemoryProvider) {
		if retention > 0 {
			provider.retention = retention
		}
	})
}

// WithLogger sets the provider logger
func WithLogger(logger log.Logger) MemoryOption {
	return MemoryOptionFunc(func(provider *MemoryProvider) {
		provider.logger = logger
	})
}

// MemoryProvider is an in-process Provider.
//
// Each namespace is an ordered log numbered from 1 that keeps the last retention
// messages. Each subscription reads the log on its own goroutine.
type MemoryProvider struct {
	name      string
	retention int
	logger    log.Logger

	mu         sync.Mutex
	namespaces map[string]*memoryLog
	closed     *atomic.Bool
}

var _ Provider = (*MemoryProvider)(nil)

// NewMemoryProvider creates an in-memory provider named "memory"
func NewMemoryProvider(opts ...MemoryOption) *MemoryProvider {
	provider := &MemoryProvider{
		name:       MemoryProviderName,
		retention:  DefaultRetention,
		logger:     log.DefaultLogger,
		namespaces: make(map[string]*memoryLog),
		closed:     atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(provider)
	}
	return provider
}

// Name returns the provider name
func (p *MemoryProvider) Name() string {
	return p.name
}

// Publish appends the delivery to the namespace log
func (p *MemoryProvider) Publish(ctx context.Context, namespace string, delivery *hub.Delivery) (uint64, error) {
	if p.closed.Load() {
		return 0, gerrors.ErrProviderClosed
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if delivery == nil {
		return 0, gerrors.NewErrInvalidMessage(fmt.Errorf("nil delivery published on %s", namespace))
	}

	return p.log(namespace).append(delivery, p.retention), nil
}

// Subscribe starts delivering the messages published after from to handler.
// The previous subscription of the namespace, if any, is stopped first.
func (p *MemoryProvider) Subscribe(ctx context.Context, namespace string, from uint64, handler Handler) (Subscription, error) {
	if p.closed.Load() {
		return nil, gerrors.ErrProviderClosed
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sub := &memorySubscription{
		id:        uuid.NewString(),
		namespace: namespace,
		from:      from,
		handler:   handler,
		cancel:    cancel,
		done:      make(chan struct{}),
		logger:    p.logger,
	}

	l := p.log(namespace)
	previous := l.activate(sub)
	if previous != nil {
		previous.stop()
		previous.wait(ctx)
		p.logger.Debugf("subscription=(%s) on %s/%s superseded by subscription=(%s)", previous.id, p.name, namespace, sub.id)
	}

	sub.log = l
	go sub.run(runCtx)
	return sub, nil
}

// LastSequence returns the last token assigned in namespace, zero when nothing was published
func (p *MemoryProvider) LastSequence(namespace string) uint64 {
	return p.log(namespace).lastSequence()
}

// Close stops every subscription and drops the logs
func (p *MemoryProvider) Close(ctx context.Context) error {
	if p.closed.Swap(true) {
		return nil
	}

	p.mu.Lock()
	logs := make([]*memoryLog, 0, len(p.namespaces))
	for _, l := range p.namespaces {
		logs = append(logs, l)
	}
	p.namespaces = make(map[string]*memoryLog)
	p.mu.Unlock()

	for _, l := range logs {
		if sub := l.activate(nil); sub != nil {
			sub.stop()
			sub.wait(ctx)
		}
	}
	return nil
}

func (p *MemoryProvider) log(namespace string) *memoryLog {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.namespaces[namespace]
	if !ok {
		l = &memoryLog{notify: make(chan struct{})}
		p.namespaces[namespace] = l
	}
	return l
}

// memoryLog is the ordered log of one namespace
type memoryLog struct {
	mu       sync.Mutex
	messages []*Message
	last     uint64
	// notify is closed and replaced on every append
	notify chan struct{}
	active *memorySubscription
}

func (l *memoryLog) append(delivery *hub.Delivery, retention int) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.last++
	stored := *delivery
	stored.Sequence = l.last
	l.messages = append(l.messages, &Message{Sequence: l.last, Delivery: &stored})
	if overflow := len(l.messages) - retention; overflow > 0 {
		clear(l.messages[:overflow])
		l.messages = l.messages[overflow:]
	}

	close(l.notify)
	l.notify = make(chan struct{})
	return l.last
}

// after returns the messages following cursor and the channel signalling the next append
func (l *memoryLog) after(cursor uint64) ([]*Message, <-chan struct{}, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.messages) == 0 || cursor >= l.last {
		return nil, l.notify, false
	}

	first := l.messages[0].Sequence
	gap := cursor+1 < first
	start := 0
	if !gap {
		start = int(cursor + 1 - first)
	}

	out := make([]*Message, len(l.messages)-start)
	copy(out, l.messages[start:])
	return out, l.notify, gap
}

func (l *memoryLog) lastSequence() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

func (l *memoryLog) activate(sub *memorySubscription) *memorySubscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	previous := l.active
	l.active = sub
	return previous
}

func (l *memoryLog) deactivate(sub *memorySubscription) {
	l.mu.Lock()
	if l.active == sub {
		l.active = nil
	}
	l.mu.Unlock()
}

type memorySubscription struct {
	id        string
	namespace string
	from      uint64
	handler   Handler
	log       *memoryLog
	logger    log.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

var _ Subscription = (*memorySubscription)(nil)

func (s *memorySubscription) ID() string {
	return s.id
}

func (s *memorySubscription) Namespace() string {
	return s.namespace
}

// Unsubscribe stops the subscription and waits for its reader to exit
func (s *memorySubscription) Unsubscribe(ctx context.Context) error {
	s.stop()
	if s.log != nil {
		s.log.deactivate(s)
	}
	s.wait(ctx)
	return nil
}

func (s *memorySubscription) stop() {
	s.stopOnce.Do(s.cancel)
}

func (s *memorySubscription) wait(ctx context.Context) {
	select {
	case <-s.done:
	case <-ctx.Done():
	}
}

func (s *memorySubscription) run(ctx context.Context) {
	defer close(s.done)

	cursor := s.from
	for {
		messages, notify, gap := s.log.after(cursor)
		if gap {
			s.logger.Warnf("subscription=(%s) on %s resumes at %d: messages after %d are no longer retained",
				s.id, s.namespace, messages[0].Sequence, cursor)
		}

		for _, message := range messages {
			if ctx.Err() != nil {
				return
			}

			msg := &Message{Namespace: s.namespace, Sequence: message.Sequence, Delivery: message.Delivery}
			if err := s.handler(ctx, msg); err != nil {
				s.logger.Errorf("subscription=(%s) on %s failed to handle message=(%d): %v", s.id, s.namespace, msg.Sequence, err)
			}
			cursor = message.Sequence
		}

		if len(messages) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-notify:
		}
	}
}
