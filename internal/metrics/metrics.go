package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsClassifiedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dolos_requests_classified_total",
		Help: "Total number of trap requests run through the classifier",
	})
	attacksDetectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dolos_attacks_detected_total",
		Help: "Total number of classified attacks by severity",
	}, []string{"severity"})
	autoBlocksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dolos_auto_blocks_total",
		Help: "Total number of blocks issued by the rule engine",
	})
	manualBlocksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dolos_manual_blocks_total",
		Help: "Total number of blocks issued by operators",
	})
	blockedHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dolos_blocked_hits_total",
		Help: "Total number of events from addresses that were already blocked",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(requestsClassifiedTotal, attacksDetectedTotal, autoBlocksTotal, manualBlocksTotal, blockedHitsTotal)
}

// IncClassified increments the classified requests counter.
func IncClassified() { requestsClassifiedTotal.Inc() }

// IncDetected increments the detected attacks counter for a severity label.
func IncDetected(severity string) { attacksDetectedTotal.WithLabelValues(severity).Inc() }

// IncAutoBlock increments the rule-engine blocks counter.
func IncAutoBlock() { autoBlocksTotal.Inc() }

// IncManualBlock increments the operator blocks counter.
func IncManualBlock() { manualBlocksTotal.Inc() }

// IncBlockedHit increments the already-blocked hits counter.
func IncBlockedHit() { blockedHitsTotal.Inc() }
