// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Activation outcome labels.
const (
	OutcomeSuccess          = "success"
	OutcomeNotFound         = "not_found"
	OutcomeBanned           = "banned"
	OutcomeAlreadyActivated = "already_activated"
	OutcomeError            = "error"
)

// Metrics holds the application's collectors. Each instance owns its
// registry so tests can build routers without duplicate registration.
type Metrics struct {
	Registry *prometheus.Registry

	KeysGenerated   *prometheus.CounterVec
	KeysSkipped     prometheus.Counter
	Activations     *prometheus.CounterVec
	BanChanges      *prometheus.CounterVec
	AuthFailures    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		KeysGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "activation",
			Name:      "keys_generated_total",
			Help:      "Activation keys inserted, by key type.",
		}, []string{"key_type"}),
		KeysSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "activation",
			Name:      "keys_skipped_total",
			Help:      "Generated keys discarded because the value already existed.",
		}),
		Activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "activation",
			Name:      "activations_total",
			Help:      "Activation attempts, by outcome.",
		}, []string{"outcome"}),
		BanChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "activation",
			Name:      "ban_changes_total",
			Help:      "Ban and unban operations that matched a key.",
		}, []string{"action"}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "activation",
			Name:      "auth_failures_total",
			Help:      "Rejected admin requests, by reason.",
		}, []string{"reason"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "activation",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.Registry.MustRegister(
		m.KeysGenerated,
		m.KeysSkipped,
		m.Activations,
		m.BanChanges,
		m.AuthFailures,
		m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
