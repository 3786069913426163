// Copyright 2026 Matt Layher
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package streamline coalesces independently periodic actions into merged
// batch callback invocations, reducing the number of wakeups and I/O calls
// needed to service them.
package streamline

import (
	"container/heap"
	"errors"
	"sync"
	"time"
)

// idleWait is the worker's wake interval while no subscriptions exist, so an
// idle Streamliner does not spin.
const idleWait = 500 * time.Millisecond

var (
	// ErrNotFound indicates that no live subscription matches the identifier
	// passed to Remove.
	ErrNotFound = errors.New("streamline: no subscription with the given identifier")

	// ErrInvalidPeriod indicates that a non-positive period was passed to Add.
	ErrInvalidPeriod = errors.New("streamline: subscription period must be greater than zero")
)

// A Streamliner schedules periodic actions and merges actions whose deadlines
// fall within a fixed imprecision window into a single callback invocation.
//
// The merge callback receives pointers to the payloads of every subscription
// due within the window, ordered by deadline and then by insertion order. It
// is invoked from a single background worker, never concurrently with itself,
// and no internal lock is held during the invocation, so the callback may
// call Add and Remove freely.
type Streamliner[T any] struct {
	mu         sync.Mutex
	entries    schedule[T]
	id         uint32
	seq        uint64
	throttling bool

	imprecision time.Duration
	merge       func(batch []*T)

	loop *looper

	// now allows overriding the current time.
	now func() time.Time
}

// New creates a Streamliner whose merge callback receives every payload due
// within imprecision of a wakeup. The callback must be non-nil. Throttling
// is disabled by default; see SetThrottling.
//
// New starts a background worker which delivers batches until Close is
// called.
func New[T any](imprecision time.Duration, merge func(batch []*T)) *Streamliner[T] {
	s := newStreamliner[T](imprecision, merge)
	s.loop = newLooper(idleWait, s.tick)
	s.loop.start()

	return s
}

// newStreamliner produces a Streamliner with no background worker, so tests
// can drive the drain loop by hand.
func newStreamliner[T any](imprecision time.Duration, merge func(batch []*T)) *Streamliner[T] {
	if merge == nil {
		panic("streamline: nil merge callback")
	}

	return &Streamliner[T]{
		imprecision: imprecision,
		merge:       merge,

		// By default use real time.
		now: time.Now,
	}
}

// Add registers a periodic action. The payload is owned by the Streamliner
// from this point on and a pointer to it is handed to the merge callback once
// per period, starting immediately. Add returns an identifier which may be
// passed to Remove; identifiers increase monotonically and are never reused
// during a Streamliner's lifetime.
//
// If period is not greater than zero, Add returns ErrInvalidPeriod.
func (s *Streamliner[T]) Add(data T, period time.Duration) (uint32, error) {
	if period <= 0 {
		return 0, ErrInvalidPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &subscription[T]{
		data:   data,
		period: period,
		id:     s.id,

		// Due immediately; the next worker wakeup delivers it.
		due: s.now(),
		seq: s.seq,
	}

	s.id++
	s.seq++
	heap.Push(&s.entries, sub)

	return sub.id, nil
}

// Remove unregisters the periodic action with the input identifier, so its
// payload is never again handed to the merge callback. Remove returns
// ErrNotFound if no live subscription has the identifier, indicating a
// caller bookkeeping bug.
func (s *Streamliner[T]) Remove(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.entries {
		if sub.id == id {
			heap.Remove(&s.entries, i)
			return nil
		}
	}

	return ErrNotFound
}

// SetThrottling toggles whether a subscription which has fallen behind
// schedule is delivered once per wakeup (enabled) or once per missed period
// (disabled). The setting takes effect on the next wakeup.
func (s *Streamliner[T]) SetThrottling(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.throttling = enabled
}

// Close stops the background worker and releases all subscriptions. The
// merge callback will not be invoked after Close returns.
func (s *Streamliner[T]) Close() error {
	// Stop outside the lock: an in-flight tick needs the lock to finish.
	if s.loop != nil {
		s.loop.stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	return nil
}

// tick runs one drain pass at the current time and applies the resulting
// wake interval to the background worker.
func (s *Streamliner[T]) tick() {
	s.loop.setPeriod(s.advance(s.now()))
}

// advance performs one drain pass starting at start: every subscription due
// within the imprecision window is collected into a single batch, delivered
// to the merge callback, and rescheduled for its next occurrence. advance
// returns the interval from start until the next wakeup is needed.
//
// Without throttling, a rescheduled subscription whose next deadline still
// falls within the window is drained again in the same pass, so backlogged
// occurrences are each delivered.
func (s *Streamliner[T]) advance(start time.Time) time.Duration {
	deadline := start.Add(s.imprecision)

	var batch []*T
	s.mu.Lock()
	for len(s.entries) > 0 && !s.entries[0].due.After(deadline) {
		sub := heap.Pop(&s.entries).(*subscription[T])
		batch = append(batch, &sub.data)

		next := sub.due.Add(sub.period)
		if s.throttling {
			// Collapse every occurrence missed within the window into a
			// single reschedule past the deadline.
			for !next.After(deadline) {
				next = next.Add(sub.period)
			}
		}

		sub.due = next
		sub.seq = s.seq
		s.seq++
		heap.Push(&s.entries, sub)
	}
	s.mu.Unlock()

	// The lock must not be held here: the callback may call Add or Remove.
	if len(batch) > 0 {
		s.merge(batch)
	}

	// The callback may have mutated the schedule, so compute the next wakeup
	// from its current head.
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return idleWait
	}

	d := s.entries[0].due.Sub(start)
	if d < 0 {
		// Overdue entries remain, perhaps because the callback outran the
		// window. Run the next pass promptly.
		d = 0
	}

	return d
}
