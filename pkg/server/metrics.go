package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server
type Metrics struct {
	// Broadcast metrics
	broadcastFanout   *prometheus.HistogramVec
	messagesBroadcast prometheus.Counter

	// Session metrics
	activeSessions       prometheus.Gauge
	sessionsCreated      prometheus.Counter
	sessionsDisconnected prometheus.Counter
	slowConsumers        prometheus.Counter

	// Frame metrics
	actionsReceived *prometheus.CounterVec // by action
	framesSent      *prometheus.CounterVec // by message type
	invalidActions  *prometheus.CounterVec // by reason

	channelMembers *prometheus.GaugeVec
}

// NewMetrics registers server metrics with reg. Nil uses a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		broadcastFanout: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "butembo_server_broadcast_fanout",
				Help:    "Number of sessions that received each broadcast",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"type"},
		),
		messagesBroadcast: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "butembo_server_messages_broadcast_total",
				Help: "Chat messages broadcast (unique messages, not deliveries)",
			},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "butembo_server_active_sessions",
				Help: "Current number of active sessions",
			},
		),
		sessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "butembo_server_sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		sessionsDisconnected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "butembo_server_sessions_disconnected_total",
				Help: "Total number of sessions disconnected",
			},
		),
		slowConsumers: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "butembo_server_slow_consumers_total",
				Help: "Sessions closed because their send queue overflowed",
			},
		),
		actionsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "butembo_server_actions_received_total",
				Help: "Client actions received, by action name",
			},
			[]string{"action"},
		),
		framesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "butembo_server_frames_sent_total",
				Help: "Frames queued to clients, by message type",
			},
			[]string{"type"},
		),
		invalidActions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "butembo_server_invalid_actions_total",
				Help: "Client frames rejected, by reason",
			},
			[]string{"reason"},
		),
		channelMembers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "butembo_server_channel_members",
				Help: "Number of sessions joined to each channel",
			},
			[]string{"channel"},
		),
	}
}

// Nil receivers are valid so tests can run without metrics.

func (m *Metrics) RecordBroadcast(msgType string, recipients int) {
	if m == nil {
		return
	}
	m.broadcastFanout.WithLabelValues(msgType).Observe(float64(recipients))
}

func (m *Metrics) RecordMessageBroadcast() {
	if m == nil {
		return
	}
	m.messagesBroadcast.Inc()
}

func (m *Metrics) RecordActiveSessions(count int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(count))
}

func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) RecordSessionDisconnected() {
	if m == nil {
		return
	}
	m.sessionsDisconnected.Inc()
}

func (m *Metrics) RecordSlowConsumer() {
	if m == nil {
		return
	}
	m.slowConsumers.Inc()
}

func (m *Metrics) RecordActionReceived(action string) {
	if m == nil {
		return
	}
	m.actionsReceived.WithLabelValues(action).Inc()
}

func (m *Metrics) RecordFrameSent(msgType string) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(msgType).Inc()
}

func (m *Metrics) RecordInvalidAction(reason string) {
	if m == nil {
		return
	}
	m.invalidActions.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordChannelMembers(channel string, count int) {
	if m == nil {
		return
	}
	m.channelMembers.WithLabelValues(channel).Set(float64(count))
}
