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

package streamlined

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mdlayher/streamline/internal/config"
)

// A Prober executes merged batches of HTTP probe routines produced by a
// streamline.Streamliner.
type Prober struct {
	ll *log.Logger
	mm *Metrics

	c *http.Client

	// now allows overriding the current time.
	now func() time.Time
}

// NewProber creates a Prober. If ll is nil, logs are discarded. If mm is
// nil, metrics are discarded.
func NewProber(ll *log.Logger, mm *Metrics) *Prober {
	if ll == nil {
		ll = log.New(io.Discard, "", 0)
	}
	if mm == nil {
		mm = NewMetrics(nil)
	}

	return &Prober{
		ll: ll,
		mm: mm,

		c: &http.Client{},

		// By default use real time.
		now: time.Now,
	}
}

// Probe executes every routine in a merged batch, in batch order, and
// records the outcome of each probe. Probe is the merge callback for the
// daemon's Streamliner and is never invoked concurrently with itself.
func (p *Prober) Probe(batch []*config.Routine) {
	start := p.now()

	names := make([]string, 0, len(batch))
	for _, rt := range batch {
		names = append(names, rt.Name)

		status := "ok"
		if err := p.probe(rt); err != nil {
			status = "error"
			p.ll.Printf("%s: probe failed: %v", rt.Name, err)
		}

		p.mm.ProbesTotal(1, rt.Name, status)
	}

	p.mm.BatchesTotal(1)
	p.mm.LastBatchSize(float64(len(batch)))
	p.mm.LastBatchTime(float64(start.Unix()))

	p.ll.Printf("probed %d routine(s) in one wakeup: %s",
		len(batch), strings.Join(names, ", "))
}

// probe executes a single HTTP probe, bounded by the routine's timeout.
func (p *Prober) probe(rt *config.Routine) error {
	ctx, cancel := context.WithTimeout(context.Background(), rt.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rt.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	begin := time.Now()
	res, err := p.c.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer res.Body.Close()

	// Drain a bounded amount of the body so the connection can be reused.
	const mebibyte = 1 << 20
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, mebibyte))

	p.mm.ProbeDurationSeconds(time.Since(begin).Seconds(), rt.Name)

	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("probe returned HTTP status %d", res.StatusCode)
	}

	return nil
}
