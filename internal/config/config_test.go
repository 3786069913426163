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

package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mdlayher/streamline/internal/config"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    string
		c    *config.Config
		ok   bool
	}{
		{
			name: "bad TOML",
			s:    "xxx",
		},
		{
			name: "bad keys",
			s: `
			[bad]
			[[bad.bad]]
			`,
		},
		{
			name: "bad no routines",
			s:    ``,
		},
		{
			name: "bad empty routine name",
			s: `
			[[routines]]
			name = ""
			url = "http://127.0.0.1/healthz"
			period = "30s"
			`,
		},
		{
			name: "bad routine name repeated",
			s: `
			[[routines]]
			name = "foo"
			url = "http://127.0.0.1/healthz"
			period = "30s"
			[[routines]]
			name = "foo"
			url = "http://127.0.0.1/livez"
			period = "30s"
			`,
		},
		{
			name: "bad routine URL scheme",
			s: `
			[[routines]]
			name = "foo"
			url = "ftp://127.0.0.1/healthz"
			period = "30s"
			`,
		},
		{
			name: "bad routine URL host",
			s: `
			[[routines]]
			name = "foo"
			url = "http://"
			period = "30s"
			`,
		},
		{
			name: "bad routine no period",
			s: `
			[[routines]]
			name = "foo"
			url = "http://127.0.0.1/healthz"
			`,
		},
		{
			name: "bad routine negative period",
			s: `
			[[routines]]
			name = "foo"
			url = "http://127.0.0.1/healthz"
			period = "-1s"
			`,
		},
		{
			name: "bad routine timeout",
			s: `
			[[routines]]
			name = "foo"
			url = "http://127.0.0.1/healthz"
			period = "30s"
			timeout = "0s"
			`,
		},
		{
			name: "bad imprecision",
			s: `
			imprecision = "0s"
			[[routines]]
			name = "foo"
			url = "http://127.0.0.1/healthz"
			period = "30s"
			`,
		},
		{
			name: "bad debug address",
			s: `
			[[routines]]
			name = "foo"
			url = "http://127.0.0.1/healthz"
			period = "30s"
			[debug]
			address = "xxx"
			`,
		},
		{
			name: "OK minimal defaults",
			s: `
			[[routines]]
			name = "foo"
			url = "http://127.0.0.1/healthz"
			period = "30s"
			`,
			c: &config.Config{
				Imprecision: 300 * time.Millisecond,
				Routines: []config.Routine{{
					Name:    "foo",
					URL:     "http://127.0.0.1/healthz",
					Period:  30 * time.Second,
					Timeout: 5 * time.Second,
				}},
			},
			ok: true,
		},
		{
			name: "OK all",
			s: `
			imprecision = "1s"
			throttling = true

			[[routines]]
			name = "frontend"
			url = "http://127.0.0.1:8080/healthz"
			period = "30s"
			timeout = "2s"

			[[routines]]
			name = "backend"
			url = "https://backend.example.com/livez"
			period = "1m"

			[debug]
			address = "localhost:9430"
			prometheus = true
			pprof = true
			`,
			c: &config.Config{
				Imprecision: 1 * time.Second,
				Throttling:  true,
				Routines: []config.Routine{
					{
						Name:    "frontend",
						URL:     "http://127.0.0.1:8080/healthz",
						Period:  30 * time.Second,
						Timeout: 2 * time.Second,
					},
					{
						Name:    "backend",
						URL:     "https://backend.example.com/livez",
						Period:  1 * time.Minute,
						Timeout: 5 * time.Second,
					},
				},
				Debug: config.Debug{
					Address:    "localhost:9430",
					Prometheus: true,
					PProf:      true,
				},
			},
			ok: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := config.Parse(strings.NewReader(tt.s))
			if tt.ok && err != nil {
				t.Fatalf("failed to parse config: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected an error, but none occurred")
			}
			if err != nil {
				t.Logf("err: %v", err)
				return
			}

			if diff := cmp.Diff(tt.c, c); diff != "" {
				t.Fatalf("unexpected Config (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDefault(t *testing.T) {
	t.Parallel()

	// The default configuration shipped by -init must always parse.
	c, err := config.Parse(strings.NewReader(config.Default))
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(c.Routines) == 0 {
		t.Fatal("default config has no routines")
	}
}
