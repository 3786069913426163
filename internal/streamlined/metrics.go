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
	"github.com/mdlayher/metricslite"
	"github.com/mdlayher/streamline/internal/build"
	"github.com/mdlayher/streamline/internal/config"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "streamlined"

// Names of metrics which are referenced here and in tests.
const (
	proberBatches   = "streamlined_prober_batches_total"
	proberBatchSize = "streamlined_prober_last_batch_size"
	proberProbes    = "streamlined_prober_probes_total"
)

// Metrics contains metrics for a streamlined instance.
type Metrics struct {
	Info metricslite.Gauge
	Time metricslite.Gauge

	// Per-prober metrics.
	RoutinesConfigured   metricslite.Gauge
	BatchesTotal         metricslite.Counter
	LastBatchSize        metricslite.Gauge
	LastBatchTime        metricslite.Gauge
	ProbesTotal          metricslite.Counter
	ProbeDurationSeconds metricslite.Gauge

	// The underlying metrics storage.
	m metricslite.Interface
}

// NewMetrics produces a Metrics structure which will register its metrics to
// the specified metricslite.Interface. If m is nil, metrics are discarded.
func NewMetrics(m metricslite.Interface) *Metrics {
	if m == nil {
		m = metricslite.Discard()
	}

	mm := &Metrics{
		m: m,

		Info: m.Gauge(
			"streamlined_build_info",
			"Metadata about this build of streamlined.",
			"version",
		),

		Time: m.Gauge(
			"streamlined_build_time",
			"The UNIX timestamp of when this build of streamlined was produced.",
		),

		RoutinesConfigured: m.Gauge(
			"streamlined_routines_configured",
			"The number of periodic probe routines registered from configuration.",
		),

		BatchesTotal: m.Counter(
			proberBatches,
			"The total number of merged probe batches delivered to the prober.",
		),

		LastBatchSize: m.Gauge(
			proberBatchSize,
			"The number of probes contained in the most recent merged batch.",
		),

		LastBatchTime: m.Gauge(
			"streamlined_prober_last_batch_time_seconds",
			"The UNIX timestamp of when the most recent merged batch was delivered.",
		),

		ProbesTotal: m.Counter(
			proberProbes,
			"The total number of HTTP probes executed, partitioned by routine and outcome.",
			"routine", "status",
		),

		ProbeDurationSeconds: m.Gauge(
			"streamlined_prober_probe_duration_seconds",
			"The duration of the most recent HTTP probe for a routine.",
			"routine",
		),
	}

	// Initialize any info metrics which are static throughout the lifetime
	// of the program.
	mm.Info(1, build.Version())
	mm.Time(float64(build.Time().Unix()))

	return mm
}

// Series produces a set of output timeseries from the Metrics, assuming the
// Metrics were initialized with a compatible metricslite.Interface. If not,
// Series will return nil, false.
func (m *Metrics) Series() (map[string]metricslite.Series, bool) {
	type series interface {
		Series() map[string]metricslite.Series
	}

	sm, ok := m.m.(series)
	if !ok {
		// Type does not support Series output.
		return nil, false
	}

	return sm.Series(), true
}

// A routineCollector collects Prometheus metrics for configured routines.
type routineCollector struct {
	Period  *prometheus.Desc
	Timeout *prometheus.Desc

	routines []config.Routine
}

// newRoutineCollector creates a routineCollector.
func newRoutineCollector(routines []config.Routine) prometheus.Collector {
	const subsystem = "routine"

	labels := []string{"routine"}

	return &routineCollector{
		Period: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "period_seconds"),
			"The configured interval between successive probes of this routine.",
			labels,
			nil,
		),

		Timeout: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "timeout_seconds"),
			"The configured timeout for a single probe of this routine.",
			labels,
			nil,
		),

		routines: routines,
	}
}

// Describe implements prometheus.Collector.
func (c *routineCollector) Describe(ch chan<- *prometheus.Desc) {
	ds := []*prometheus.Desc{
		c.Period,
		c.Timeout,
	}

	for _, d := range ds {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *routineCollector) Collect(ch chan<- prometheus.Metric) {
	for _, rt := range c.routines {
		ch <- prometheus.MustNewConstMetric(
			c.Period,
			prometheus.GaugeValue,
			rt.Period.Seconds(),
			rt.Name,
		)

		ch <- prometheus.MustNewConstMetric(
			c.Timeout,
			prometheus.GaugeValue,
			rt.Timeout.Seconds(),
			rt.Name,
		)
	}
}
