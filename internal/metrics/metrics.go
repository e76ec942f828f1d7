package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Métricas del motor de tokens. Viven en un paquete aparte para que store,
// tokens y http las usen sin ciclos de import.

var (
	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tokens_issued_total",
		Help: "Tokens emitidos por tipo",
	}, []string{"token_type"})

	TokenIssueCollisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_issue_collisions_total",
		Help: "Colisiones de unique constraint absorbidas al emitir",
	}, []string{"token_type"})

	TokensConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tokens_consumed_total",
		Help: "Intentos de consumo por tipo y resultado",
	}, []string{"token_type", "result"}) // result: ok|already_used|expired|error

	ValidationCodesVerified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_codes_verified_total",
		Help: "Verificaciones de validation codes por resultado",
	}, []string{"result"}) // result: valid|invalid|expired

	TokensSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokens_swept_total",
		Help: "Tokens vencidos borrados por el sweeper",
	})

	StoreMigrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_migrations_total",
		Help: "Corridas de migraciones por backend y resultado",
	}, []string{"backend", "result"})

	StoreMigrationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_migration_duration_seconds",
		Help:    "Duración de las corridas de migraciones",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
	}, []string{"backend"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Número total de requests procesadas",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latencia de los requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		TokensIssued, TokenIssueCollisions, TokensConsumed, ValidationCodesVerified,
		TokensSwept, StoreMigrations, StoreMigrationDuration, HTTPRequests, HTTPRequestDuration,
	}
}

// Register registra las métricas en el registry dado (o el default si nil).
// Registrar dos veces no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// Handler expone /metrics para el gatherer dado (o el default si nil).
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// MigrationObserved registra una corrida de migraciones.
func MigrationObserved(backend, result string, d time.Duration) {
	StoreMigrations.WithLabelValues(backend, result).Inc()
	StoreMigrationDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// HTTPObserved registra un request terminado.
func HTTPObserved(method, route string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
