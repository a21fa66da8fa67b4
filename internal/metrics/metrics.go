// Package metrics records exchange outcomes and latencies with Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for ExchangesTotal.
const (
	OutcomeSuccess       = "success"
	OutcomeRegistryError = "registry_error"
	OutcomeValidation    = "validation"
	OutcomeCrypto        = "crypto"
	OutcomeIntegrity     = "integrity"
	OutcomeSignature     = "signature"
	OutcomeTransport     = "transport"
)

// Metrics tracks registry exchanges. A nil *Metrics records nothing.
type Metrics struct {
	ExchangesTotal   *prometheus.CounterVec
	ExchangeDuration *prometheus.HistogramVec
	RegistryErrors   *prometheus.CounterVec
}

// New creates the exchange metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExchangesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authbridge_exchanges_total",
			Help: "Total number of registry exchanges by message kind and outcome",
		}, []string{"kind", "outcome"}),
		ExchangeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authbridge_exchange_duration_seconds",
			Help:    "Duration of registry exchanges from build to completion",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		RegistryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authbridge_registry_errors_total",
			Help: "Error codes reported by the registry in signed responses",
		}, []string{"kind", "code"}),
	}
}

// ObserveExchange records one finished exchange.
// Call with time.Now() at the start of the exchange.
func (m *Metrics) ObserveExchange(kind, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.ExchangesTotal.WithLabelValues(kind, outcome).Inc()
	m.ExchangeDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// IncrementRegistryError records an error code returned by the registry.
func (m *Metrics) IncrementRegistryError(kind, code string) {
	if m == nil {
		return
	}
	m.RegistryErrors.WithLabelValues(kind, code).Inc()
}
