// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exports pipeline activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/googlegenomics/htscov/internal/annotate"
)

const namespace = "htscov"

// Collector records depth queries and results.  It implements
// annotate.Observer and is safe for concurrent use.
type Collector struct {
	IntervalsAnnotated prometheus.Counter
	IncompleteTargets  prometheus.Counter
	DepthQueries       *prometheus.CounterVec
	BasesQueried       *prometheus.CounterVec
	GroupSize          prometheus.Histogram
	QueryDuration      prometheus.Histogram
	Requests           *prometheus.CounterVec

	registry *prometheus.Registry
}

// New returns a Collector registered with its own registry.
func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.IntervalsAnnotated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intervals_annotated_total",
			Help:      "Total number of intervals annotated",
		},
	)

	c.IncompleteTargets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incomplete_intervals_total",
			Help:      "Intervals with completeness below 1",
		},
	)

	c.DepthQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "depth_queries_total",
			Help:      "Depth queries by contig",
		},
		[]string{"contig"},
	)

	c.BasesQueried = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bases_queried_total",
			Help:      "Reference bases read from the depth source by contig",
		},
		[]string{"contig"},
	)

	c.GroupSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "group_size",
			Help:      "Intervals served by one depth query",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
		},
	)

	c.QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "depth_query_duration_seconds",
			Help:      "Time spent in one depth query",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	c.Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Coverage requests by status",
		},
		[]string{"status"},
	)

	c.registry.MustRegister(
		c.IntervalsAnnotated,
		c.IncompleteTargets,
		c.DepthQueries,
		c.BasesQueried,
		c.GroupSize,
		c.QueryDuration,
		c.Requests,
	)
	return c
}

func (c *Collector) ObserveQuery(contig string, span, members int, elapsed time.Duration) {
	c.DepthQueries.WithLabelValues(contig).Inc()
	c.BasesQueried.WithLabelValues(contig).Add(float64(span))
	c.GroupSize.Observe(float64(members))
	c.QueryDuration.Observe(elapsed.Seconds())
}

func (c *Collector) ObserveResult(result annotate.Result) {
	c.IntervalsAnnotated.Inc()
	if result.Completeness < 1 {
		c.IncompleteTargets.Inc()
	}
}

// ObserveRequest counts one finished coverage request.
func (c *Collector) ObserveRequest(status string) {
	c.Requests.WithLabelValues(status).Inc()
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
