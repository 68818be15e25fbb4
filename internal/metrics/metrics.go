package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Métricas de dominio. Viven en un paquete aparte para que rags, multisig y
// http las usen sin ciclos de import.

var (
	SignaturesIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rags_signatures_issued_total",
		Help: "Firmas RAGS emitidas por algoritmo",
	}, []string{"alg"})

	Validations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rags_validations_total",
		Help: "Validaciones RAGS por algoritmo y resultado (ok o error kind)",
	}, []string{"alg", "outcome"})

	ValidationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rags_validation_duration_seconds",
		Help:    "Latencia de validate_signature",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"alg"})

	NoncesSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rags_nonces_swept_total",
		Help: "Nonces expirados borrados por el sweeper",
	})

	VotesRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "multisig_votes_total",
		Help: "Votos registrados por estado (Signed|Rejected) y resultado",
	}, []string{"vote", "outcome"})

	TxTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "multisig_tx_transitions_total",
		Help: "Transiciones de estado de transacciones",
	}, []string{"from", "to"})

	BroadcastLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "multisig_broadcast_duration_seconds",
		Help:    "Latencia de la llamada al network adapter",
		Buckets: prometheus.DefBuckets,
	}, []string{"network", "result"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SignaturesIssued, Validations, ValidationLatency, NoncesSwept,
		VotesRecorded, TxTransitions, BroadcastLatency,
	}
}

// Register registra las métricas en reg (o el default si es nil). Ignora duplicados.
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

func ObserveValidation(alg, outcome string, elapsed time.Duration) {
	Validations.WithLabelValues(alg, outcome).Inc()
	ValidationLatency.WithLabelValues(alg).Observe(elapsed.Seconds())
}

func ObserveTransition(from, to string) {
	TxTransitions.WithLabelValues(from, to).Inc()
}

func ObserveBroadcast(network, result string, elapsed time.Duration) {
	BroadcastLatency.WithLabelValues(network, result).Observe(elapsed.Seconds())
}
