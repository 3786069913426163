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
	"context"
	"sync"
	"time"
)

// A looper invokes a function repeatedly on a single worker goroutine,
// sleeping the currently configured period between invocations. setPeriod
// takes effect for the next sleep, not one already in progress. stop
// guarantees that the function will not be invoked again and that any
// in-flight invocation has completed before stop returns.
type looper struct {
	mu     sync.Mutex
	period time.Duration

	fn     func()
	cancel context.CancelFunc
	doneC  chan struct{}
}

// newLooper creates a looper which will invoke fn every period once started.
func newLooper(period time.Duration, fn func()) *looper {
	return &looper{
		period: period,
		fn:     fn,
		doneC:  make(chan struct{}),
	}
}

// start launches the worker goroutine. start must be called exactly once.
func (l *looper) start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	go l.run(ctx)
}

// run is the worker loop, sleeping and invoking l.fn until ctx is canceled.
func (l *looper) run(ctx context.Context) {
	defer close(l.doneC)

	t := time.NewTimer(l.getPeriod())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			// Cancelation takes priority over a pending tick.
			if ctx.Err() != nil {
				return
			}

			l.fn()
			t.Reset(l.getPeriod())
		}
	}
}

// setPeriod configures the sleep interval used after the next invocation
// completes. Non-positive periods are clamped to zero, making the worker
// re-invoke its function promptly.
func (l *looper) setPeriod(period time.Duration) {
	if period < 0 {
		period = 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.period = period
}

func (l *looper) getPeriod() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.period
}

// stop halts the worker and waits for any in-flight invocation to complete.
func (l *looper) stop() {
	l.cancel()
	<-l.doneC
}
