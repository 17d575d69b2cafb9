/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package metrics provides the Prometheus collectors of the orchestration server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "orkestra"

// Collector records endpoint, step, fallback and model serving metrics. A nil Collector
// records nothing.
type Collector struct {
	registry *prometheus.Registry

	endpointRequests *prometheus.CounterVec
	endpointLatency  *prometheus.HistogramVec
	stepResults      *prometheus.CounterVec
	stepLatency      *prometheus.HistogramVec
	fallbackAdvances *prometheus.CounterVec
	stepCacheHits    *prometheus.CounterVec
	modelState       *prometheus.GaugeVec
	modelHealth      *prometheus.GaugeVec
	modelLoadLatency *prometheus.HistogramVec
}

// NewCollector creates a collector backed by its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = defaultNamespace
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.endpointRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "endpoint",
			Name:      "requests_total",
			Help:      "Total number of endpoint executions",
		},
		[]string{"domain", "operation", "status"},
	)
	c.endpointLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "endpoint",
			Name:      "duration_seconds",
			Help:      "Time taken to execute an endpoint",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"domain", "operation"},
	)
	c.stepResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "step",
			Name:      "results_total",
			Help:      "Total number of step outcomes (success, skipped, failed)",
		},
		[]string{"source_type", "outcome"},
	)
	c.stepLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "step",
			Name:      "duration_seconds",
			Help:      "Time taken by a step adapter call",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"source_type"},
	)
	c.fallbackAdvances = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fallback",
			Name:      "advances_total",
			Help:      "Total number of times a fallback chain moved past a failed strategy",
		},
		[]string{"source_type", "strategy"},
	)
	c.stepCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "step",
			Name:      "cache_lookups_total",
			Help:      "Total number of step cache lookups",
		},
		[]string{"result"},
	)
	c.modelState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "state",
			Help:      "Current state of a model handle (0=unloaded, 1=loading, 2=running, 3=failed, 4=stopped)",
		},
		[]string{"source", "model"},
	)
	c.modelHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "up",
			Help:      "Whether the last health probe of a running model succeeded",
		},
		[]string{"source", "model"},
	)
	c.modelLoadLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "load_duration_seconds",
			Help:      "Time taken to load a model",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"strategy", "result"},
	)

	c.registry.MustRegister(
		c.endpointRequests,
		c.endpointLatency,
		c.stepResults,
		c.stepLatency,
		c.fallbackAdvances,
		c.stepCacheHits,
		c.modelState,
		c.modelHealth,
		c.modelLoadLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the Prometheus registry of the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the HTTP handler that exposes the collected metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordEndpoint records an endpoint execution.
func (c *Collector) RecordEndpoint(domain, operation, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.endpointRequests.WithLabelValues(domain, operation, status).Inc()
	c.endpointLatency.WithLabelValues(domain, operation).Observe(duration.Seconds())
}

// RecordStep records the outcome of a step.
func (c *Collector) RecordStep(sourceType, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.stepResults.WithLabelValues(sourceType, outcome).Inc()
	if duration > 0 {
		c.stepLatency.WithLabelValues(sourceType).Observe(duration.Seconds())
	}
}

// RecordFallbackAdvance records a fallback chain moving past a failed strategy.
func (c *Collector) RecordFallbackAdvance(sourceType, strategy string) {
	if c == nil {
		return
	}
	c.fallbackAdvances.WithLabelValues(sourceType, strategy).Inc()
}

// RecordStepCache records a step cache lookup.
func (c *Collector) RecordStepCache(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.stepCacheHits.WithLabelValues(result).Inc()
}

// RecordModelState records the state of a model handle.
func (c *Collector) RecordModelState(source, model string, state int) {
	if c == nil {
		return
	}
	c.modelState.WithLabelValues(source, model).Set(float64(state))
}

// RecordModelHealth records the result of a model health probe.
func (c *Collector) RecordModelHealth(source, model string, up bool) {
	if c == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	c.modelHealth.WithLabelValues(source, model).Set(v)
}

// RecordModelLoad records a finished model load.
func (c *Collector) RecordModelLoad(strategy string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.modelLoadLatency.WithLabelValues(strategy, result).Observe(duration.Seconds())
}
