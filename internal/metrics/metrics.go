// Package metrics wires the simulator's optional Prometheus counters and
// gauges (SPEC_FULL §10.6): sessions_active, requests_total,
// cip_errors_total, tag_reads_total.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the simulator's metrics under their own prometheus
// registry so they never collide with a hosting process's default one.
type Registry struct {
	reg *prometheus.Registry

	SessionsActive prometheus.Gauge
	RequestsTotal  prometheus.Counter
	CIPErrorsTotal prometheus.Counter
	TagReadsTotal  prometheus.Counter
}

// NewRegistry constructs and registers the simulator's metric set.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		reg: reg,
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "enipsim",
			Name:      "sessions_active",
			Help:      "Number of currently registered EtherNet/IP sessions.",
		}),
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enipsim",
			Name:      "requests_total",
			Help:      "Total encapsulation requests dispatched.",
		}),
		CIPErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enipsim",
			Name:      "cip_errors_total",
			Help:      "Total CIP responses with a non-zero general status.",
		}),
		TagReadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enipsim",
			Name:      "tag_reads_total",
			Help:      "Total successful tag reads.",
		}),
	}

	reg.MustRegister(m.SessionsActive, m.RequestsTotal, m.CIPErrorsTotal, m.TagReadsTotal)
	return m
}

// Handler returns the HTTP handler serving the Prometheus text exposition
// format, mounted by the caller on the configured metrics listener.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
