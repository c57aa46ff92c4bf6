package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turf_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	HoldsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turf_holds_total",
			Help: "Hold attempts by result",
		},
		[]string{"result"},
	)

	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turf_payments_total",
			Help: "Payment attempts by verdict",
		},
		[]string{"verdict"},
	)

	ReapedBookings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "turf_reaped_bookings_total",
			Help: "Expired pending bookings cancelled by the reaper",
		},
	)

	ReapedSlots = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "turf_reaped_slots_total",
			Help: "Held slots released back to available by the reaper",
		},
	)

	GeneratedSlots = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "turf_generated_slots_total",
			Help: "Slots created by bulk generation",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "turf_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "turf_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "turf_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
