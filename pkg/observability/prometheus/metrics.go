// Package prometheus exports bus, decode and HTTP metrics in the Prometheus
// text format.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fluxorio/housebus/pkg/core"
	"github.com/fluxorio/housebus/pkg/schema"
)

// DefaultNamespace prefixes every metric when Options.Namespace is empty.
const DefaultNamespace = "housebus"

// Options configures NewMetrics.
type Options struct {
	Namespace string

	// Registry receives the collectors. When nil a fresh registry is created
	// and the Go and process collectors are added to it.
	Registry *prometheus.Registry
}

// Metrics holds all collectors of one process. It implements
// core.BusObserver and schema.Observer.
type Metrics struct {
	registry *prometheus.Registry

	busPublished  *prometheus.CounterVec
	busFanout     *prometheus.CounterVec
	busDelivered  *prometheus.HistogramVec
	busDropped    *prometheus.CounterVec
	decodes       *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	httpBodyBytes *prometheus.HistogramVec
}

var (
	_ core.BusObserver = (*Metrics)(nil)
	_ schema.Observer  = (*Metrics)(nil)
)

// NewMetrics registers all collectors. It panics if a collector with the
// same name is already registered on opts.Registry.
func NewMetrics(opts Options) *Metrics {
	ns := opts.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		busPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "eventbus_messages_total",
				Help:      "Messages handed to the event bus",
			},
			[]string{"address", "kind"}, // kind: publish, send, request
		),
		busFanout: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "eventbus_deliveries_scheduled_total",
				Help:      "Per-consumer deliveries scheduled by publish and send",
			},
			[]string{"address"},
		),
		busDelivered: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "eventbus_handler_duration_seconds",
				Help:      "Time spent in consumer handlers",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"address", "result"},
		),
		busDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "eventbus_dropped_total",
				Help:      "Deliveries that could not be queued for a consumer",
			},
			[]string{"address", "reason"},
		),
		decodes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "schema_decodes_total",
				Help:      "Typed dispatch attempts by shape and outcome",
			},
			[]string{"shape", "result"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpBodyBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "http_request_size_bytes",
				Help:      "HTTP request body size in bytes",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 8), // 64B to 1MB
			},
			[]string{"method", "path"},
		),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Published(address, kind string, consumers int) {
	m.busPublished.WithLabelValues(address, kind).Inc()
	if consumers > 0 {
		m.busFanout.WithLabelValues(address).Add(float64(consumers))
	}
}

func (m *Metrics) Delivered(address string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.busDelivered.WithLabelValues(address, result).Observe(elapsed.Seconds())
}

func (m *Metrics) Dropped(address, reason string) {
	m.busDropped.WithLabelValues(address, reason).Inc()
}

func (m *Metrics) Accepted(shape string) {
	m.decodes.WithLabelValues(shape, "accepted").Inc()
}

func (m *Metrics) Rejected(shape string, reason schema.Reason) {
	m.decodes.WithLabelValues(shape, reason.String()).Inc()
}

func (m *Metrics) recordHTTPRequest(method, path, status string, duration time.Duration, requestSize int) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.httpBodyBytes.WithLabelValues(method, path).Observe(float64(requestSize))
}
