package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the scheduler's prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	submitted   prometheus.Counter
	rejected    *prometheus.CounterVec
	completed   *prometheus.CounterVec
	cancelled   prometheus.Counter
	forcedJoins prometheus.Counter
	recoveries  prometheus.Counter
	queueDepth  prometheus.Gauge
	inFlight    prometheus.Gauge
	duration    prometheus.Histogram
	waypoints   prometheus.Histogram
}

// NewMetrics registers the scheduler collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		submitted: f.NewCounter(prometheus.CounterOpts{
			Name: "regionnav_path_requests_total",
			Help: "Path requests accepted by the scheduler",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regionnav_path_requests_rejected_total",
			Help: "Path requests rejected synchronously by reason",
		}, []string{"reason"}), // "no_areas", "malformed" or "stopped"
		completed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regionnav_path_requests_completed_total",
			Help: "Path requests delivered to their callback by result",
		}, []string{"result"}), // "found", "no_path" or "stale"
		cancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "regionnav_path_requests_cancelled_total",
			Help: "Path requests cancelled before delivery",
		}),
		forcedJoins: f.NewCounter(prometheus.CounterOpts{
			Name: "regionnav_scheduler_forced_joins_total",
			Help: "Background searches joined after exceeding the tick budget",
		}),
		recoveries: f.NewCounter(prometheus.CounterOpts{
			Name: "regionnav_scheduler_mutation_recoveries_total",
			Help: "In-flight searches requeued because the graph started mutating",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "regionnav_scheduler_queue_depth",
			Help: "Requests waiting to execute",
		}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "regionnav_scheduler_in_flight",
			Help: "Background searches currently executing",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "regionnav_search_duration_seconds",
			Help:    "Path search duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14), // 50us to ~400ms
		}),
		waypoints: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "regionnav_path_waypoints",
			Help:    "Waypoints per found path",
			Buckets: []float64{2, 3, 5, 8, 13, 21, 34, 55, 89},
		}),
	}
}

func (m *Metrics) observeSubmitted() {
	if m != nil {
		m.submitted.Inc()
	}
}

func (m *Metrics) observeRejected(reason string) {
	if m != nil {
		m.rejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) observeCompleted(result string) {
	if m != nil {
		m.completed.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) observeCancelled() {
	if m != nil {
		m.cancelled.Inc()
	}
}

func (m *Metrics) observeForcedJoin() {
	if m != nil {
		m.forcedJoins.Inc()
	}
}

func (m *Metrics) observeRecovery(n int) {
	if m != nil {
		m.recoveries.Add(float64(n))
	}
}

func (m *Metrics) observeSearch(d time.Duration, waypoints int) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
	if waypoints > 0 {
		m.waypoints.Observe(float64(waypoints))
	}
}

func (m *Metrics) setQueue(queued, inFlight int) {
	if m != nil {
		m.queueDepth.Set(float64(queued))
		m.inFlight.Set(float64(inFlight))
	}
}
