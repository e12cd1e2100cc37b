package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics holds the agent's collectors on their own registry so tests can build
// independent instances.
type Metrics struct {
	Registry *prometheus.Registry

	cartAdds         *prometheus.CounterVec
	checkouts        *prometheus.CounterVec
	logoutSignals    *prometheus.CounterVec
	analyticsDropped prometheus.Counter
	httpInFlight     prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		cartAdds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cart",
				Name:      "adds_total",
				Help:      "Add-to-cart attempts by result.",
			},
			[]string{"result"},
		),
		checkouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "checkout",
				Name:      "outcomes_total",
				Help:      "Checkout steps by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		),
		logoutSignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "logout_signals_total",
				Help:      "Logout signals by reason.",
			},
			[]string{"reason"},
		),
		analyticsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "analytics",
				Name:      "dropped_events_total",
				Help:      "Analytics events that could not be published.",
			},
		),
		httpInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "inflight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "route"},
		),
	}

	m.Registry.MustRegister(
		m.cartAdds,
		m.checkouts,
		m.logoutSignals,
		m.analyticsDropped,
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CartAdd(result string) {
	m.cartAdds.WithLabelValues(result).Inc()
}

func (m *Metrics) Checkout(stage, outcome string) {
	m.checkouts.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) LogoutSignal(reason string) {
	m.logoutSignals.WithLabelValues(reason).Inc()
}

func (m *Metrics) AnalyticsDropped() {
	m.analyticsDropped.Inc()
}

// ObserveRequest records one finished gateway request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, took time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	method = strings.ToUpper(method)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

func (m *Metrics) RequestStarted() {
	m.httpInFlight.Inc()
}

func (m *Metrics) RequestFinished() {
	m.httpInFlight.Dec()
}
