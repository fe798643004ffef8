package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lessonCapacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lesson_capacity_seats",
			Help: "Configured seat capacity per lesson",
		},
		[]string{"lesson_id"},
	)

	lessonAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lesson_available_seats",
			Help: "Currently available seats per lesson",
		},
		[]string{"lesson_id"},
	)

	seatWriteConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seat_write_conflicts_total",
			Help: "Guarded seat updates that lost to a concurrent writer",
		},
		[]string{"lesson_id"},
	)

	ordersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Order placement outcomes",
		},
		[]string{"status"},
	)

	orderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_placement_duration_seconds",
			Help:    "Duration of order placement transactions",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	throttledRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "throttled_requests_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

// SetLessonSeats records the current capacity and availability gauges
// for a lesson.
func SetLessonSeats(lessonID string, capacity, available int) {
	lessonCapacity.WithLabelValues(lessonID).Set(float64(capacity))
	lessonAvailable.WithLabelValues(lessonID).Set(float64(available))
}

// ClearLessonSeats drops the gauges of a deleted lesson.
func ClearLessonSeats(lessonID string) {
	lessonCapacity.DeleteLabelValues(lessonID)
	lessonAvailable.DeleteLabelValues(lessonID)
}

// TrackSeatConflict counts a lost guarded write.
func TrackSeatConflict(lessonID string) {
	seatWriteConflicts.WithLabelValues(lessonID).Inc()
}

// TrackOrder counts an order outcome; status is "completed" or a
// failure reason.
func TrackOrder(status string) {
	ordersTotal.WithLabelValues(status).Inc()
}

// ObserveOrderDuration records how long an order transaction took.
func ObserveOrderDuration(duration time.Duration) {
	orderDuration.Observe(duration.Seconds())
}

// TrackThrottled counts a rate-limited request.
func TrackThrottled() {
	throttledRequests.Inc()
}
