package infra

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every Prometheus collector the service exports.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ConteosRegistrados    prometheus.Counter
	ConteosEnRevision     prometheus.Counter
	ContadoresReiniciados prometheus.Counter
	ConteosRechazados     *prometheus.CounterVec

	AccesosDenegados *prometheus.CounterVec
	AlertasEncoladas *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoloimp_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ecoloimp_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ConteosRegistrados: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecoloimp_conteos_registrados_total",
			Help: "Meter readings persisted.",
		}),
		ConteosEnRevision: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecoloimp_conteos_revision_total",
			Help: "Meter readings flagged for review.",
		}),
		ContadoresReiniciados: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecoloimp_contadores_reiniciados_total",
			Help: "Meter readings where a device reset was detected.",
		}),
		ConteosRechazados: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoloimp_conteos_rechazados_total",
			Help: "Meter readings rejected, by reason.",
		}, []string{"motivo"}),
		AccesosDenegados: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoloimp_accesos_denegados_total",
			Help: "Requests rejected by the access guards.",
		}, []string{"kind"}),
		AlertasEncoladas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoloimp_alertas_encoladas_total",
			Help: "Alert jobs pushed to the queue, by type.",
		}, []string{"tipo"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.HTTPRequestsTotal, m.HTTPRequestDuration,
			m.ConteosRegistrados, m.ConteosEnRevision, m.ContadoresReiniciados, m.ConteosRechazados,
			m.AccesosDenegados, m.AlertasEncoladas,
		)
	}
	return m
}

// NewTestMetrics returns unregistered collectors.
func NewTestMetrics() *Metrics { return NewMetrics(nil) }
