package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Occupancy is the number of people currently inside, by kind.
	Occupancy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "libreserve_occupancy",
		Help: "People currently signed in to the library",
	}, []string{"kind"})

	// Admissions counts admission-engine operations by outcome.
	Admissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "libreserve_admissions_total",
		Help: "Admission operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// RuntimeFaults counts invariant violations surfaced as LibraryRuntimeFault.
	RuntimeFaults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "libreserve_runtime_faults_total",
		Help: "Operations that failed after their preconditions were verified",
	})

	// NotificationsDropped counts notices discarded because the worker queue was full.
	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "libreserve_notifications_dropped_total",
		Help: "Notifications dropped because the dispatch queue was full",
	})

	// Expired counts BOOKED reservations the sweeper expired.
	Expired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "libreserve_reservations_expired_total",
		Help: "Reservations expired by the lifecycle sweeper",
	})

	// SweepDurationMs is the latency of one lifecycle sweep.
	SweepDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "libreserve_sweep_duration_ms",
		Help:    "Duration of reservation lifecycle sweeps in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
)

// Outcome labels an admission result for the Admissions counter.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "rejected"
}
