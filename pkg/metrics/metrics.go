/*
Copyright The Volcano Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Label names
	LabelModel = "model"
	LabelMode  = "mode"
	LabelOp    = "op"

	// Admission mode values
	ModePassthrough = "passthrough"
	ModeOrdered     = "ordered"

	// Operation values
	OpPoll = "poll"
	OpPeek = "peek"
)

// Metrics holds all Prometheus metrics for the admission scheduler
type Metrics struct {
	// Ticket lifecycle counters
	RequestsQueued   prometheus.CounterVec
	RequestsAdmitted prometheus.CounterVec
	RequestsRejected prometheus.CounterVec
	RequestsRemoved  prometheus.CounterVec

	// Queue decode counters
	DecodeDroppedEntries prometheus.CounterVec

	// Admission latency histograms
	PollDuration prometheus.HistogramVec

	// Queue and deployment gauges
	QueueDepth         prometheus.GaugeVec
	HealthyDeployments prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all Prometheus metrics registered
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsQueued: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infer_scheduler_requests_queued_total",
				Help: "Total number of tickets pushed into a model group's queue",
			},
			[]string{LabelModel},
		),

		RequestsAdmitted: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infer_scheduler_requests_admitted_total",
				Help: "Total number of admissions granted, split by passthrough vs priority-ordered",
			},
			[]string{LabelModel, LabelMode},
		),

		RequestsRejected: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infer_scheduler_requests_rejected_total",
				Help: "Total number of poll/peek calls answered with a negative admission decision",
			},
			[]string{LabelModel, LabelOp},
		),

		RequestsRemoved: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infer_scheduler_requests_removed_total",
				Help: "Total number of tickets cancelled by their caller",
			},
			[]string{LabelModel},
		),

		DecodeDroppedEntries: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infer_scheduler_queue_decode_dropped_total",
				Help: "Total number of malformed queue entries dropped while decoding store values",
			},
			[]string{LabelModel},
		),

		PollDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "infer_scheduler_poll_duration_seconds",
				Help:    "Admission decision latency including the store round-trip",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{LabelModel, LabelOp},
		),

		QueueDepth: *promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "infer_scheduler_queue_depth",
				Help: "Last observed number of queued tickets per model group",
			},
			[]string{LabelModel},
		),

		HealthyDeployments: *promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "infer_scheduler_healthy_deployments",
				Help: "Current number of healthy backend deployments per model group",
			},
			[]string{LabelModel},
		),
	}
}

// RecordRequestQueued records a ticket accepted into a model group's queue
func (m *Metrics) RecordRequestQueued(model string) {
	m.RequestsQueued.WithLabelValues(model).Inc()
}

// RecordAdmission records a granted admission decision
func (m *Metrics) RecordAdmission(model, mode string) {
	m.RequestsAdmitted.WithLabelValues(model, mode).Inc()
}

// RecordRejection records a negative admission decision
func (m *Metrics) RecordRejection(model, op string) {
	m.RequestsRejected.WithLabelValues(model, op).Inc()
}

// RecordRequestRemoved records a ticket cancelled via remove
func (m *Metrics) RecordRequestRemoved(model string) {
	m.RequestsRemoved.WithLabelValues(model).Inc()
}

// RecordDecodeDropped records malformed entries dropped while decoding a queue
func (m *Metrics) RecordDecodeDropped(model string, count int) {
	if count > 0 {
		m.DecodeDroppedEntries.WithLabelValues(model).Add(float64(count))
	}
}

// ObservePollDuration records the latency of one poll or peek call
func (m *Metrics) ObservePollDuration(model, op string, duration time.Duration) {
	m.PollDuration.WithLabelValues(model, op).Observe(duration.Seconds())
}

// SetQueueDepth records the last observed queue depth for a model group
func (m *Metrics) SetQueueDepth(model string, depth int) {
	m.QueueDepth.WithLabelValues(model).Set(float64(depth))
}

// SetHealthyDeployments records the current healthy deployment count for a model group
func (m *Metrics) SetHealthyDeployments(model string, count int) {
	m.HealthyDeployments.WithLabelValues(model).Set(float64(count))
}

// DefaultMetrics is the global metrics instance used by the scheduler components
var DefaultMetrics = NewMetrics()
