package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. Each instance owns its registry so
// several servers (or tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	submits   *prometheus.CounterVec
	exports   *prometheus.CounterVec
	hostCalls *prometheus.HistogramVec
	optionsN  *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.submits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timereport",
		Name:      "submit_total",
		Help:      "Submit flows by terminal state",
	}, []string{"state"})
	m.exports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timereport",
		Name:      "export_total",
		Help:      "Exports by result",
	}, []string{"result"})
	m.hostCalls = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "timereport",
		Name:      "host_call_seconds",
		Help:      "Duration of host calls by operation and status",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op", "status"})
	m.optionsN = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "timereport",
		Name:      "options_loaded",
		Help:      "Number of selectable options by list",
	}, []string{"list"})

	m.registry.MustRegister(
		m.submits, m.exports, m.hostCalls, m.optionsN,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Submit(state string) {
	m.submits.WithLabelValues(state).Inc()
}

func (m *Metrics) Export(result string) {
	m.exports.WithLabelValues(result).Inc()
}

func (m *Metrics) Options(list string, n int) {
	m.optionsN.WithLabelValues(list).Set(float64(n))
}

// ObserveHostCall implements host.Observer.
func (m *Metrics) ObserveHostCall(op string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.hostCalls.WithLabelValues(op, status).Observe(d.Seconds())
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
