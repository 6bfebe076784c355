package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"escrowchain/core/events"
	"escrowchain/native/escrow"
)

// EscrowMetrics tracks host operations and committed escrow events.
type EscrowMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	events     *prometheus.CounterVec
	lifecycle  *prometheus.CounterVec
	fees       prometheus.Counter
	stakes     *prometheus.CounterVec
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics
)

// Escrow returns the process-wide metrics registered with the default
// Prometheus registerer.
func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = NewEscrowMetrics(prometheus.DefaultRegisterer)
	})
	return escrowRegistry
}

// NewEscrowMetrics builds and registers a metrics set on reg.
func NewEscrowMetrics(reg prometheus.Registerer) *EscrowMetrics {
	m := &EscrowMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escrow",
			Name:      "operations_total",
			Help:      "Host operations segmented by operation and result.",
		}, []string{"operation", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "escrow",
			Name:      "operation_duration_seconds",
			Help:      "Latency distribution for host operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escrow",
			Name:      "events_total",
			Help:      "Committed escrow events by type.",
		}, []string{"type"}),
		lifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escrow",
			Name:      "lifecycle_total",
			Help:      "Escrows by lifecycle stage.",
		}, []string{"stage"}),
		fees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "escrow",
			Name:      "fees_collected_total",
			Help:      "Plaintext fees distributed at settlement.",
		}),
		stakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escrow",
			Name:      "dispute_stakes_total",
			Help:      "Settled dispute stakes by disposition.",
		}, []string{"disposition"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.latency, m.events, m.lifecycle, m.fees, m.stakes)
	}
	return m
}

// Observe records one host operation. Rejections are labelled with the
// escrow error kind.
func (m *EscrowMetrics) Observe(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	result := "ok"
	if err != nil {
		result = escrow.Kind(err)
		if result == "" {
			result = "error"
		}
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// Emit implements events.Emitter.
func (m *EscrowMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.events.WithLabelValues(evt.EventType()).Inc()
	payload := events.Payload(evt)
	switch evt.EventType() {
	case escrow.EventTypeEscrowCreated:
		m.lifecycle.WithLabelValues("created").Inc()
	case escrow.EventTypeEscrowResolved:
		m.lifecycle.WithLabelValues("resolved").Inc()
	case escrow.EventTypeFeeCollected:
		if fee, err := strconv.ParseFloat(payload.Attr("fee"), 64); err == nil && fee > 0 {
			m.fees.Add(fee)
		}
	case escrow.EventTypeStakeSettled:
		if disposition := payload.Attr("disposition"); disposition != "" {
			m.stakes.WithLabelValues(disposition).Inc()
		}
	}
}
