package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the client connection layer
type Metrics struct {
	framesReceived   *prometheus.CounterVec // by message type
	framesSent       *prometheus.CounterVec // by action
	framesDropped    *prometheus.CounterVec // by reason
	observerPanics   prometheus.Counter
	fanoutRecipients prometheus.Histogram
	stateTransitions *prometheus.CounterVec // by target state
	observers        prometheus.Gauge
}

// NewMetrics registers client metrics with reg. Passing nil uses a private
// registry, which keeps repeated construction in tests conflict free.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		framesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "butembo_client_frames_received_total",
				Help: "Inbound frames decoded, by message type",
			},
			[]string{"type"},
		),
		framesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "butembo_client_frames_sent_total",
				Help: "Outbound frames queued for transmission, by action",
			},
			[]string{"action"},
		),
		framesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "butembo_client_frames_dropped_total",
				Help: "Frames dropped without delivery, by reason",
			},
			[]string{"reason"},
		),
		observerPanics: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "butembo_client_observer_panics_total",
				Help: "Observer callbacks that panicked during fan-out",
			},
		),
		fanoutRecipients: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "butembo_client_fanout_recipients",
				Help:    "Number of observers notified per event",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
			},
		),
		stateTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "butembo_client_state_transitions_total",
				Help: "Connection state transitions, by new state",
			},
			[]string{"state"},
		),
		observers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "butembo_client_observers",
				Help: "Currently registered observers",
			},
		),
	}
}

// Drop reasons
const (
	dropDecode       = "decode"
	dropUnknownType  = "unknown_type"
	dropNotConnected = "not_connected"
	dropQueueFull    = "queue_full"
	dropStale        = "stale"
)

// Nil receivers are valid so components can run without metrics.

func (m *Metrics) RecordFrameReceived(msgType string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(msgType).Inc()
}

func (m *Metrics) RecordFrameSent(action string) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(action).Inc()
}

func (m *Metrics) RecordFrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordObserverPanic() {
	if m == nil {
		return
	}
	m.observerPanics.Inc()
}

func (m *Metrics) RecordFanout(recipients int) {
	if m == nil {
		return
	}
	m.fanoutRecipients.Observe(float64(recipients))
}

func (m *Metrics) RecordStateTransition(state ConnState) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(state.String()).Inc()
}

func (m *Metrics) RecordObservers(count int) {
	if m == nil {
		return
	}
	m.observers.Set(float64(count))
}
