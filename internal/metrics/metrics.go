package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Error classes recorded by Stream.ErrorObserved.
const (
	ClassBenign     = "benign"
	ClassConnection = "connection"
	ClassProtocol   = "protocol"
	ClassHandler    = "handler"
)

// Stream holds the Prometheus collectors for one streaming client.
// A nil *Stream is valid and records nothing.
type Stream struct {
	framesReceived     *prometheus.CounterVec // By kind (text/binary)
	framesSent         prometheus.Counter
	messagesDispatched *prometheus.CounterVec // By message type
	errors             *prometheus.CounterVec // By class
	handshakes         *prometheus.CounterVec // By result
	connectionState    *prometheus.GaugeVec   // 1 for the current state, 0 otherwise
	handlerDuration    prometheus.Histogram

	collectors []prometheus.Collector
	states     []string
}

// NewStream creates collectors under the given namespace. states lists every
// connection state name so the state gauge can be zeroed on transitions.
func NewStream(namespace string, states []string) *Stream {
	m := &Stream{
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_received_total",
			Help:      "Total number of frames received from the transport",
		}, []string{"kind"}),

		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_sent_total",
			Help:      "Total number of JSON frames sent",
		}),

		messagesDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_dispatched_total",
			Help:      "Total number of messages handed to the dispatch queue",
		}, []string{"type"}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "errors_total",
			Help:      "Total number of faults observed, by class",
		}, []string{"class"}),

		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "handshakes_total",
			Help:      "Total number of authentication handshakes, by result",
		}, []string{"result"}),

		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connection_state",
			Help:      "Current connection state (1 = active state)",
		}, []string{"state"}),

		handlerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "handler_duration_seconds",
			Help:      "Message handler execution time in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		states: states,
	}

	m.collectors = []prometheus.Collector{
		m.framesReceived,
		m.framesSent,
		m.messagesDispatched,
		m.errors,
		m.handshakes,
		m.connectionState,
		m.handlerDuration,
	}
	return m
}

// Register registers all collectors with reg. Already-registered collectors
// are tolerated so that a client can be recreated against the same registry.
func (m *Stream) Register(reg prometheus.Registerer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// FrameReceived counts an inbound frame of the given kind.
func (m *Stream) FrameReceived(kind string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(kind).Inc()
}

// FrameSent counts an outbound frame.
func (m *Stream) FrameSent() {
	if m == nil {
		return
	}
	m.framesSent.Inc()
}

// MessageDispatched counts a message routed to a handler.
func (m *Stream) MessageDispatched(msgType string) {
	if m == nil {
		return
	}
	m.messagesDispatched.WithLabelValues(msgType).Inc()
}

// ErrorObserved counts a fault of the given class.
func (m *Stream) ErrorObserved(class string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(class).Inc()
}

// HandshakeResolved counts a handshake outcome.
func (m *Stream) HandshakeResolved(result string) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(result).Inc()
}

// StateChanged marks state as the only active connection state.
func (m *Stream) StateChanged(state string) {
	if m == nil {
		return
	}
	for _, s := range m.states {
		m.connectionState.WithLabelValues(s).Set(0)
	}
	m.connectionState.WithLabelValues(state).Set(1)
}

// HandlerObserved records a handler execution time.
func (m *Stream) HandlerObserved(d time.Duration) {
	if m == nil {
		return
	}
	m.handlerDuration.Observe(d.Seconds())
}

// Handler returns an HTTP handler exposing the metrics in reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
