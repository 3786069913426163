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

package streamline

import (
	"container/heap"
	"time"
)

// A subscription is one registered periodic action: an opaque payload, the
// interval between its deadlines, and its caller-facing identifier.
type subscription[T any] struct {
	data   T
	period time.Duration
	id     uint32

	// due is the subscription's current deadline. seq totally orders
	// subscriptions with identical deadlines by insertion, and is refreshed
	// on every reschedule so a redelivered subscription sorts after entries
	// already waiting at the same instant.
	due time.Time
	seq uint64
}

// A schedule is a min-heap of subscriptions ordered by (due, seq), so the
// entry at index 0 is always the next deadline to service.
type schedule[T any] []*subscription[T]

var _ heap.Interface = &schedule[int]{}

func (s schedule[T]) Len() int { return len(s) }

func (s schedule[T]) Less(i, j int) bool {
	if s[i].due.Equal(s[j].due) {
		return s[i].seq < s[j].seq
	}

	return s[i].due.Before(s[j].due)
}

func (s schedule[T]) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s *schedule[T]) Push(x any) { *s = append(*s, x.(*subscription[T])) }

func (s *schedule[T]) Pop() (item any) {
	n := len(*s)
	item, (*s)[n-1] = (*s)[n-1], nil
	*s = (*s)[:n-1]
	return item
}
