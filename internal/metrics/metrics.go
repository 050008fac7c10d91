package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "courtbook"

var (
	once sync.Once

	reservationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_created_total",
			Help:      "Count of reservations created by renter kind.",
		},
		[]string{"renter"},
	)

	reservationConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_conflicts_total",
			Help:      "Count of reserve or reschedule attempts rejected because the interval was taken.",
		},
		[]string{"operation"},
	)

	policyRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_rejections_total",
			Help:      "Count of booking attempts rejected by booking policy.",
		},
		[]string{"reason"},
	)

	reservationsCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_cancelled_total",
			Help:      "Count of cancellations by fee outcome.",
		},
		[]string{"outcome"},
	)

	reservationsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_completed_total",
			Help:      "Count of reservations marked completed after their interval passed.",
		},
	)

	storageRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_retries_total",
			Help:      "Count of retried storage operations.",
		},
		[]string{"operation"},
	)

	slotCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_cache_lookups_total",
			Help:      "Count of slot cache lookups by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of API requests by route and status code.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "code"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationsCreated,
			reservationConflicts,
			policyRejections,
			reservationsCancelled,
			reservationsCompleted,
			storageRetries,
			slotCacheLookups,
			httpRequests,
		)
	})
}

func IncReservationCreated(member bool) {
	renter := "guest"
	if member {
		renter = "member"
	}
	reservationsCreated.WithLabelValues(renter).Inc()
}

func IncConflict(operation string) {
	reservationConflicts.WithLabelValues(operation).Inc()
}

func IncPolicyRejection(reason string) {
	policyRejections.WithLabelValues(reason).Inc()
}

func IncReservationCancelled(free bool) {
	outcome := "fee"
	if free {
		outcome = "free"
	}
	reservationsCancelled.WithLabelValues(outcome).Inc()
}

func AddReservationsCompleted(n int64) {
	reservationsCompleted.Add(float64(n))
}

func IncStorageRetry(operation string) {
	storageRetries.WithLabelValues(operation).Inc()
}

func IncSlotCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	slotCacheLookups.WithLabelValues(result).Inc()
}

func ObserveHTTPRequest(route, code string, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, code).Observe(elapsed.Seconds())
}
