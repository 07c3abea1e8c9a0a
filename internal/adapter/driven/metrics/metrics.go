package metrics

import (
	"net/http"

	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signal"

// Recorder implements port.Metrics on a private Prometheus registry.
type Recorder struct {
	registry  *prometheus.Registry
	frames    *prometheus.CounterVec
	forwarded *prometheus.CounterVec
	errors    *prometheus.CounterVec
}

// NewRecorder registers the counters plus gauges sampled from rooms and
// connections at scrape time.
func NewRecorder(rooms, connections func() int) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames by message type.",
		}, []string{"type"}),
		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_forwarded_total",
			Help:      "Offers, answers and candidates relayed to their target.",
		}, []string{"type"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_sent_total",
			Help:      "ERROR envelopes sent back to clients by code.",
		}, []string{"code"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.frames,
		r.forwarded,
		r.errors,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Rooms with at least one member.",
		}, func() float64 { return float64(rooms()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}, func() float64 { return float64(connections()) }),
	)
	return r
}

func (r *Recorder) FrameReceived(kind domain.Kind) {
	r.frames.WithLabelValues(label(kind)).Inc()
}

func (r *Recorder) SignalForwarded(kind domain.Kind) {
	r.forwarded.WithLabelValues(label(kind)).Inc()
}

func (r *Recorder) ErrorSent(code domain.ErrorCode) {
	r.errors.WithLabelValues(string(code)).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// label folds every non-inbound kind into "unknown".
func label(kind domain.Kind) string {
	if kind.Inbound() {
		return string(kind)
	}
	return "unknown"
}
