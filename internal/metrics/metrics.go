package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stundenplan"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Count of intranet requests by operation and status.",
		},
		[]string{"operation", "status"},
	)

	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of intranet requests.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"operation"},
	)

	lessonsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lessons_skipped_total",
			Help:      "Count of lessons ignored by the occupancy resolver because of unparsable times.",
		},
	)

	roomsFree = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_free",
			Help:      "Free rooms at the last occupancy resolution.",
		},
	)

	roomsOccupied = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_occupied",
			Help:      "Occupied rooms at the last occupancy resolution.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, upstreamRequests, upstreamDuration, lessonsSkipped, roomsFree, roomsOccupied)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// ObserveUpstream records one intranet call. status 0 means a transport error.
func ObserveUpstream(operation string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	upstreamRequests.WithLabelValues(operation, label).Inc()
	upstreamDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func AddLessonsSkipped(n int) {
	if n > 0 {
		lessonsSkipped.Add(float64(n))
	}
}

func SetRooms(free, occupied int) {
	roomsFree.Set(float64(free))
	roomsOccupied.Set(float64(occupied))
}
