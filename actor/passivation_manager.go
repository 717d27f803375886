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
	cheaps "container/heap"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// passivationEntry tracks one grain subject to idle passivation.
type passivationEntry struct {
	pid      *grainPID
	timeout  time.Duration
	deadline time.Time
	index    int
}

// refreshDeadline recomputes the deadline from the latest message the grain received.
func (entry *passivationEntry) refreshDeadline() {
	last := entry.pid.latestReceiveTime.Load()
	if last.IsZero() {
		last = time.Now()
	}
	entry.deadline = last.Add(entry.timeout)
}

// passivationManager runs a single goroutine that deactivates idle grains.
// Deadlines are kept in a min-heap and refreshed lazily when they fire, so
// message handling never touches the manager.
type passivationManager struct {
	mu        sync.Mutex
	entries   map[*grainPID]*passivationEntry
	queue     passivationHeap
	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	started   atomic.Bool
	passivate func(pid *grainPID)
}

func newPassivationManager(passivate func(pid *grainPID)) *passivationManager {
	return &passivationManager{
		entries:   make(map[*grainPID]*passivationEntry),
		wake:      make(chan struct{}, 1),
		passivate: passivate,
	}
}

// Start launches the manager loop.
func (m *passivationManager) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run()
}

// Stop halts the loop and forgets every entry.
func (m *passivationManager) Stop() {
	if !m.started.CompareAndSwap(true, false) {
		return
	}
	close(m.stop)
	<-m.done

	m.mu.Lock()
	clear(m.entries)
	m.queue = nil
	m.mu.Unlock()
}

// Register schedules pid for passivation after timeout of inactivity.
func (m *passivationManager) Register(pid *grainPID, timeout time.Duration) {
	if !m.started.Load() || timeout <= 0 {
		return
	}

	m.mu.Lock()
	if _, ok := m.entries[pid]; ok {
		m.mu.Unlock()
		return
	}
	entry := &passivationEntry{pid: pid, timeout: timeout}
	entry.refreshDeadline()
	m.entries[pid] = entry
	cheaps.Push(&m.queue, entry)
	m.mu.Unlock()
	m.notify()
}

// Unregister removes pid from passivation tracking.
func (m *passivationManager) Unregister(pid *grainPID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[pid]
	if !ok {
		return
	}
	delete(m.entries, pid)
	if entry.index >= 0 && entry.index < len(m.queue) && m.queue[entry.index] == entry {
		cheaps.Remove(&m.queue, entry.index)
	}
}

// Len returns the number of tracked grains
func (m *passivationManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *passivationManager) run() {
	defer close(m.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		if next, ok := m.nextDeadline(); ok {
			timer.Reset(time.Until(next))
		} else {
			timer.Stop()
		}

		select {
		case <-m.stop:
			return
		case <-m.wake:
		case <-timer.C:
			m.trigger(time.Now())
		}
	}
}

func (m *passivationManager) nextDeadline() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return time.Time{}, false
	}
	return m.queue[0].deadline, true
}

// trigger passivates every entry idle past its deadline.
// Entries that received messages since they were scheduled are pushed back.
func (m *passivationManager) trigger(now time.Time) {
	var expired []*grainPID

	m.mu.Lock()
	for len(m.queue) > 0 && !m.queue[0].deadline.After(now) {
		entry := cheaps.Pop(&m.queue).(*passivationEntry)
		entry.refreshDeadline()
		if entry.deadline.After(now) {
			cheaps.Push(&m.queue, entry)
			continue
		}
		delete(m.entries, entry.pid)
		expired = append(expired, entry.pid)
	}
	m.mu.Unlock()

	for _, pid := range expired {
		m.passivate(pid)
	}
}

func (m *passivationManager) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

type passivationHeap []*passivationEntry

func (h passivationHeap) Len() int { return len(h) }

func (h passivationHeap) Less(i, j int) bool {
	return h[i].deadline.Before(h[j].deadline)
}

func (h passivationHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *passivationHeap) Push(x any) {
	entry := x.(*passivationEntry)
	entry.index = len(*h)
	*h = append(*h, entry)
}

func (h *passivationHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*h = old[:n-1]
	return entry
}
