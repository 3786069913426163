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

// Package streamlined implements the streamlined daemon: a periodic HTTP
// prober which merges probes with nearby deadlines into single wakeups.
package streamlined

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/mdlayher/metricslite"
	"github.com/mdlayher/streamline"
	"github.com/mdlayher/streamline/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// A Server coordinates the goroutines that handle various pieces of the
// streamlined daemon.
type Server struct {
	cfg config.Config

	ll  *log.Logger
	mm  *Metrics
	reg *prometheus.Registry

	eg    *errgroup.Group
	ready chan struct{}
}

// NewServer creates a Server with the input configuration and logger. If ll
// is nil, logs are discarded.
func NewServer(cfg config.Config, ll *log.Logger) *Server {
	if ll == nil {
		ll = log.New(io.Discard, "", 0)
	}

	// Set up Prometheus instrumentation using the typical Go collectors.
	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newRoutineCollector(cfg.Routines),
	)

	mm := NewMetrics(metricslite.NewPrometheus(reg))
	mm.RoutinesConfigured(float64(len(cfg.Routines)))

	return &Server{
		cfg: cfg,

		ll:  ll,
		mm:  mm,
		reg: reg,

		ready: make(chan struct{}),
	}
}

// Ready indicates that the server is ready to begin serving requests.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Run runs the streamlined server until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	// Attach the context to the errgroup so that goroutines are canceled
	// when one of them returns an error.
	eg, ctx := errgroup.WithContext(ctx)
	s.eg = eg
	defer close(s.ready)

	p := NewProber(s.ll, s.mm)

	sl := streamline.New[config.Routine](s.cfg.Imprecision, p.Probe)
	sl.SetThrottling(s.cfg.Throttling)

	for _, rt := range s.cfg.Routines {
		if _, err := sl.Add(rt, rt.Period); err != nil {
			_ = sl.Close()
			return fmt.Errorf("failed to register routine %q: %v", rt.Name, err)
		}

		s.ll.Printf("%s: probing %s every %s, merging deadlines within %s",
			rt.Name, rt.URL, rt.Period, s.cfg.Imprecision)
	}

	// Tear down the streamliner as soon as the context is canceled, so no
	// probes run after Run returns.
	s.eg.Go(func() error {
		<-ctx.Done()
		return sl.Close()
	})

	// Configure the HTTP debug server, if applicable.
	if err := s.runDebug(ctx); err != nil {
		return fmt.Errorf("failed to start debug HTTP server: %v", err)
	}

	// Indicate readiness to any waiting callers, and then wait for all
	// goroutines to be canceled and stopped successfully.
	s.ready <- struct{}{}
	if err := s.eg.Wait(); err != nil {
		return fmt.Errorf("failed to serve: %v", err)
	}

	return nil
}

// runDebug runs a debug HTTP server using goroutines, until ctx is canceled.
func (s *Server) runDebug(ctx context.Context) error {
	d := s.cfg.Debug
	if d.Address == "" {
		// Nothing to do, don't start the server.
		return nil
	}

	s.ll.Printf("starting HTTP debug listener on %q: prometheus: %v, pprof: %v",
		d.Address, d.Prometheus, d.PProf)

	s.eg.Go(func() error {
		// Serve the debug server with retries in the event that the
		// configured address is not available on startup.
		return s.serve(ctx, func() error {
			l, err := net.Listen("tcp", d.Address)
			if err != nil {
				return err
			}

			// Listener ready, wait for cancelation via context and serve
			// the HTTP server.
			var wg sync.WaitGroup
			wg.Add(1)
			defer wg.Wait()

			go func() {
				defer wg.Done()
				<-ctx.Done()
				_ = l.Close()
			}()

			return http.Serve(l, newHTTPHandler(d.Prometheus, d.PProf, s.reg))
		})
	})

	return nil
}

// serve invokes fn with retries until a listener is started, handling certain
// network listener errors as appropriate.
func (s *Server) serve(ctx context.Context, fn func() error) error {
	const (
		attempts = 40
		delay    = 3 * time.Second
	)

	var nerr *net.OpError
	for i := 0; i < attempts; i++ {
		// Don't wait on the first attempt.
		if i != 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
		}

		err := fn()
		switch {
		case errors.As(err, &nerr):
			// Handle outside switch.
		case err == nil:
			panic("streamlined: serve function should never return nil")
		default:
			// Nothing to do.
			return err
		}

		// Unfortunately there isn't an easier way to check for this, but
		// we want to ignore errors related to the connection closing, since
		// the listener is closed when the context is canceled.
		if nerr.Err.Error() == "use of closed network connection" {
			return nil
		}

		s.ll.Printf("error starting HTTP debug server, %d attempt(s) remaining: %v", attempts-(i+1), err)
	}

	return errors.New("timed out starting HTTP debug server")
}

// A httpHandler provides the HTTP debug API handler for streamlined.
type httpHandler struct {
	h http.Handler
}

// newHTTPHandler creates a httpHandler with the specified configuration.
func newHTTPHandler(
	usePrometheus, usePProf bool,
	reg *prometheus.Registry,
) *httpHandler {
	mux := http.NewServeMux()

	h := &httpHandler{
		h: mux,
	}

	// Optionally enable Prometheus and pprof support.
	if usePrometheus {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	if usePProf {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return h
}

func (h *httpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Matching on "/" would produce an overly broad rule, so check manually
	// here and indicate that this is the streamlined service.
	if r.URL.Path == "/" {
		_, _ = io.WriteString(w, "Streamlined\n")
		return
	}

	h.h.ServeHTTP(w, r)
}
