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
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mdlayher/metricslite"
	"github.com/mdlayher/streamline/internal/config"
)

func TestProberProbeMetrics(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		_, _ = io.WriteString(w, "OK")
	}))
	defer srv.Close()

	// A second server which is immediately closed produces a routine whose
	// probes fail at the connection level rather than with an HTTP status.
	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	mm := NewMetrics(metricslite.NewMemory())
	p := NewProber(nil, mm)

	batch := []*config.Routine{
		{Name: "ok", URL: srv.URL + "/healthz", Period: time.Second, Timeout: time.Second},
		{Name: "bad", URL: srv.URL + "/bad", Period: time.Second, Timeout: time.Second},
		{Name: "down", URL: downURL, Period: time.Second, Timeout: time.Second},
	}

	// Deliver one full batch and then a second batch containing only the
	// healthy routine, as the streamliner would after a partial merge.
	p.Probe(batch)
	p.Probe(batch[:1])

	want := metricslite.Series{
		Name: proberProbes,
		Samples: map[string]float64{
			"routine=ok,status=ok":      2,
			"routine=bad,status=error":  1,
			"routine=down,status=error": 1,
		},
	}

	got := findMetric(t, mm, proberProbes)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected probe timeseries (-want +got):\n%s", diff)
	}
}

func findMetric(t *testing.T, mm *Metrics, name string) metricslite.Series {
	t.Helper()

	series, ok := mm.Series()
	if !ok {
		t.Fatal("Metrics storage does not support timeseries output")
	}

	s, ok := series[name]
	if !ok {
		t.Fatalf("no timeseries with name: %q", name)
	}

	return s
}
