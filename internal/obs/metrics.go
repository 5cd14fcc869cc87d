package obs

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of Prometheus collectors a context registers itself
// against.
type Metrics struct {
	ItemsCreated      prometheus.Counter
	ItemsRemoved      prometheus.Counter
	QueueBatchSize    prometheus.Histogram
	FramesTransmitted prometheus.Counter
	FramesReceived    prometheus.Counter
	TransportErrors   *prometheus.CounterVec
	ReassemblyErrors  prometheus.Counter
	RPCMessagesByType *prometheus.CounterVec
}

// NewMetrics constructs and registers a Metrics set against reg. Pass
// prometheus.NewRegistry() per context, or prometheus.DefaultRegisterer to
// expose on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ItemsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweak_items_created_total",
			Help: "Total number of items registered in the model.",
		}),
		ItemsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweak_items_removed_total",
			Help: "Total number of items removed from the model.",
		}),
		QueueBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tweak_queue_batch_size",
			Help:    "Size of job batches handed to the worker by queue.Pull.",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		FramesTransmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweak_frames_transmitted_total",
			Help: "Total number of application frames transmitted.",
		}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweak_frames_received_total",
			Help: "Total number of application frames received.",
		}),
		TransportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweak_transport_errors_total",
			Help: "Transport-level errors by backend.",
		}, []string{"backend"}),
		ReassemblyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweak_chunk_reassembly_errors_total",
			Help: "Chunked-backend reassembly protocol violations.",
		}),
		RPCMessagesByType: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweak_rpc_messages_total",
			Help: "RPC messages exchanged, by message type.",
		}, []string{"type"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ItemsCreated, m.ItemsRemoved, m.QueueBatchSize,
			m.FramesTransmitted, m.FramesReceived,
			m.TransportErrors, m.ReassemblyErrors, m.RPCMessagesByType,
		)
	}
	return m
}

// The IncX/ObserveX methods below are nil-receiver safe: a context or
// transport that was never given a Metrics set (the common case in tests
// and in the "observability is ambient, not required" design) can call them
// unconditionally instead of guarding every call site with a nil check.

func (m *Metrics) IncItemsCreated() {
	if m == nil {
		return
	}
	m.ItemsCreated.Inc()
}

func (m *Metrics) IncItemsRemoved() {
	if m == nil {
		return
	}
	m.ItemsRemoved.Inc()
}

func (m *Metrics) ObserveQueueBatch(n int) {
	if m == nil {
		return
	}
	m.QueueBatchSize.Observe(float64(n))
}

func (m *Metrics) IncFramesTransmitted() {
	if m == nil {
		return
	}
	m.FramesTransmitted.Inc()
}

func (m *Metrics) IncFramesReceived() {
	if m == nil {
		return
	}
	m.FramesReceived.Inc()
}

func (m *Metrics) IncTransportError(backend string) {
	if m == nil {
		return
	}
	m.TransportErrors.WithLabelValues(backend).Inc()
}

func (m *Metrics) IncReassemblyError() {
	if m == nil {
		return
	}
	m.ReassemblyErrors.Inc()
}

func (m *Metrics) IncRPCMessage(msgType string) {
	if m == nil {
		return
	}
	m.RPCMessagesByType.WithLabelValues(msgType).Inc()
}
