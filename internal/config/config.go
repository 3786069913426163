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

// Package config provides configuration for the streamlined daemon.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/BurntSushi/toml"
)

// Default is the toml representation of the default configuration.
const Default = `# Streamlined vALPHA configuration file

# All duration values are specified in Go time.ParseDuration format:
# https://golang.org/pkg/time/#ParseDuration.

# The maximum difference between routine deadlines which may be coalesced
# into a single wakeup and a single merged probe batch.
imprecision = "300ms"

# When true, a routine which has fallen behind schedule is probed at most
# once per wakeup, discarding occurrences missed within the window, instead
# of once per missed period.
throttling = false

# Routines which will be probed periodically. Routines whose deadlines fall
# within the imprecision window of each other are probed in one pass.
[[routines]]
name = "frontend"
url = "http://127.0.0.1:8080/healthz"
period = "30s"
# How long a single probe may take before it is considered failed. Defaults
# to 5s when empty.
timeout = "5s"

# Enable or disable the debug HTTP server for facilities such as Prometheus
# metrics and pprof support.
#
# Warning: do not expose pprof on an untrusted network!
[debug]
address = "localhost:9430"
prometheus = false
pprof = false
`

// defaultTimeout is applied to routines which do not specify a probe timeout.
const defaultTimeout = 5 * time.Second

// A file is the raw top-level configuration file representation.
type file struct {
	Imprecision string       `toml:"imprecision"`
	Throttling  bool         `toml:"throttling"`
	Routines    []rawRoutine `toml:"routines"`
	Debug       Debug        `toml:"debug"`
}

// A rawRoutine is the raw configuration file representation of a Routine.
type rawRoutine struct {
	Name    string `toml:"name"`
	URL     string `toml:"url"`
	Period  string `toml:"period"`
	Timeout string `toml:"timeout"`
}

// Config specifies the configuration for streamlined.
type Config struct {
	Imprecision time.Duration
	Throttling  bool
	Routines    []Routine
	Debug       Debug
}

// A Routine provides configuration for an individual periodic probe.
type Routine struct {
	Name    string
	URL     string
	Period  time.Duration
	Timeout time.Duration
}

// Debug provides configuration for debugging and observability.
type Debug struct {
	Address    string `toml:"address"`
	Prometheus bool   `toml:"prometheus"`
	PProf      bool   `toml:"pprof"`
}

// Parse parses a Config in TOML format from an io.Reader and verifies that
// the configuration is valid.
func Parse(r io.Reader) (*Config, error) {
	var f file
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, err
	}
	if u := md.Undecoded(); len(u) > 0 {
		return nil, fmt.Errorf("unrecognized configuration keys: %s", u)
	}

	// Must configure at least one routine.
	if len(f.Routines) == 0 {
		return nil, errors.New("no configured routines")
	}

	c := &Config{
		Throttling: f.Throttling,
		Routines:   make([]Routine, 0, len(f.Routines)),
	}

	// The imprecision window may be empty to accept a sane default, but a
	// window of zero would defeat merging entirely.
	c.Imprecision, err = parseDuration(f.Imprecision, 300*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("bad imprecision: %v", err)
	}
	if c.Imprecision <= 0 {
		return nil, errors.New("imprecision must be greater than zero")
	}

	// Validate debug configuration if set.
	if f.Debug.Address != "" {
		if _, err := net.ResolveTCPAddr("tcp", f.Debug.Address); err != nil {
			return nil, fmt.Errorf("bad debug address: %v", err)
		}
		c.Debug = f.Debug
	}

	names := make(map[string]struct{}, len(f.Routines))
	for i, r := range f.Routines {
		rt, err := parseRoutine(r)
		if err != nil {
			// Narrow down the location of a configuration error.
			return nil, fmt.Errorf("routine %d/%q: %v", i, r.Name, err)
		}

		if _, ok := names[rt.Name]; ok {
			return nil, fmt.Errorf("routine %d/%q: name is not unique", i, r.Name)
		}
		names[rt.Name] = struct{}{}

		c.Routines = append(c.Routines, *rt)
	}

	return c, nil
}

// parseRoutine parses and validates a single raw routine.
func parseRoutine(r rawRoutine) (*Routine, error) {
	if r.Name == "" {
		return nil, errors.New("empty routine name")
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, fmt.Errorf("bad URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("bad URL scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("bad URL: empty host")
	}

	// Unlike timeout, the period has no sane default; a routine without a
	// period is a configuration error.
	if r.Period == "" {
		return nil, errors.New("empty period")
	}
	period, err := time.ParseDuration(r.Period)
	if err != nil {
		return nil, fmt.Errorf("bad period: %v", err)
	}
	if period <= 0 {
		return nil, errors.New("period must be greater than zero")
	}

	timeout, err := parseDuration(r.Timeout, defaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("bad timeout: %v", err)
	}
	if timeout <= 0 {
		return nil, errors.New("timeout must be greater than zero")
	}

	return &Routine{
		Name:    r.Name,
		URL:     r.URL,
		Period:  period,
		Timeout: timeout,
	}, nil
}

// parseDuration parses a duration string, substituting a default when the
// string is empty.
func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}

	return time.ParseDuration(s)
}
