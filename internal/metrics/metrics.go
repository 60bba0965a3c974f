// Package metrics expone las métricas Prometheus del broker.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once    sync.Once
	initErr error

	callsTotal       *prometheus.CounterVec
	callDuration     *prometheus.HistogramVec
	providerRequests *prometheus.CounterVec
	lockContention   *prometheus.CounterVec
)

// Register inicializa las métricas en reg (default si nil) y devuelve el handler para /metrics.
func Register(reg prometheus.Registerer, gatherer prometheus.Gatherer) (http.Handler, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	once.Do(func() {
		callsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_calls_total",
			Help: "Callables invocados por función y status",
		}, []string{"function", "status"})

		callDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "broker_call_duration_seconds",
			Help:    "Latencia de los callables",
			Buckets: prometheus.DefBuckets,
		}, []string{"function"})

		providerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Requests salientes a Apple/GitHub por operación y resultado",
		}, []string{"provider", "op", "result"})

		lockContention = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_lock_contention_total",
			Help: "Operaciones rechazadas porque el uid ya tenía otra en curso",
		}, []string{"function"})

		for _, c := range []prometheus.Collector{callsTotal, callDuration, providerRequests, lockContention} {
			if err := registerCollector(reg, c); err != nil {
				initErr = err
				return
			}
		}
	})
	if initErr != nil {
		return nil, initErr
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}), nil
}

// registerCollector registra el collector en el registry indicado, ignorando duplicados.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// ObserveCall registra un callable terminado. No-op si Register no corrió.
func ObserveCall(function, status string, d time.Duration) {
	if callsTotal == nil {
		return
	}
	callsTotal.WithLabelValues(function, status).Inc()
	callDuration.WithLabelValues(function).Observe(d.Seconds())
}

// ProviderRequest registra una llamada a un proveedor externo.
func ProviderRequest(provider, op string, err error) {
	if providerRequests == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	providerRequests.WithLabelValues(provider, op, result).Inc()
}

// LockContended cuenta un rechazo por lock tomado.
func LockContended(function string) {
	if lockContention == nil {
		return
	}
	lockContention.WithLabelValues(function).Inc()
}
