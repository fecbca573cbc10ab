package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	connections     prometheus.Gauge
	rooms           prometheus.Gauge
	members         prometheus.Gauge
	joins           prometheus.Counter
	joinRejected    prometheus.Counter
	leaves          prometheus.Counter
	signalsRelayed  prometheus.Counter
	signalsDropped  prometheus.Counter
	backpressure    prometheus.Counter
	ledgerWrites    *prometheus.CounterVec
	ledgerQueueDrop prometheus.Counter
	ledgerPending   prometheus.Gauge

	gatherer prometheus.Gatherer
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "interview_connections",
			Help: "Live signaling connections.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "interview_rooms",
			Help: "Rooms with at least one member.",
		}),
		members: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "interview_members",
			Help: "Connections currently in a room.",
		}),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interview_joins_total",
			Help: "Accepted room joins.",
		}),
		joinRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interview_join_rejected_total",
			Help: "Joins rejected as protocol violations.",
		}),
		leaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interview_leaves_total",
			Help: "Room leaves, explicit or by disconnect.",
		}),
		signalsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interview_signals_relayed_total",
			Help: "Signal payloads handed to a destination connection.",
		}),
		signalsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interview_signals_dropped_total",
			Help: "Signal payloads dropped because the destination was gone.",
		}),
		backpressure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interview_backpressure_total",
			Help: "Outbound frames refused by a full connection buffer.",
		}),
		ledgerWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_ledger_writes_total",
			Help: "Session ledger writes by event kind and result.",
		}, []string{"kind", "result"}),
		ledgerQueueDrop: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interview_ledger_queue_dropped_total",
			Help: "Ledger events dropped because a shard queue was full.",
		}),
		ledgerPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "interview_ledger_pending",
			Help: "Ledger events waiting for a retry.",
		}),
	}

	reg.MustRegister(
		m.connections,
		m.rooms,
		m.members,
		m.joins,
		m.joinRejected,
		m.leaves,
		m.signalsRelayed,
		m.signalsDropped,
		m.backpressure,
		m.ledgerWrites,
		m.ledgerQueueDrop,
		m.ledgerPending,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Handler exposes the registry the metrics were registered on.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

func (m *Metrics) SetMembers(n int) {
	if m == nil {
		return
	}
	m.members.Set(float64(n))
}

func (m *Metrics) RecordJoin() {
	if m == nil {
		return
	}
	m.joins.Inc()
}

func (m *Metrics) RecordJoinRejected() {
	if m == nil {
		return
	}
	m.joinRejected.Inc()
}

func (m *Metrics) RecordLeave() {
	if m == nil {
		return
	}
	m.leaves.Inc()
}

func (m *Metrics) RecordSignal(delivered bool) {
	if m == nil {
		return
	}
	if delivered {
		m.signalsRelayed.Inc()
		return
	}
	m.signalsDropped.Inc()
}

func (m *Metrics) RecordBackpressure() {
	if m == nil {
		return
	}
	m.backpressure.Inc()
}

func (m *Metrics) RecordLedgerWrite(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ledgerWrites.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) RecordLedgerQueueDrop() {
	if m == nil {
		return
	}
	m.ledgerQueueDrop.Inc()
}

func (m *Metrics) AddLedgerPending(delta int) {
	if m == nil {
		return
	}
	m.ledgerPending.Add(float64(delta))
}
