package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_requests_total",
		Help: "Booking requests grouped by outcome.",
	}, []string{"result"})

	bookingDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_decisions_total",
		Help: "Provider decisions grouped by verdict.",
	}, []string{"decision"})

	arbitrationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbitration_seconds",
		Help:    "Time spent inside the per-ride critical section.",
		Buckets: prometheus.DefBuckets,
	})
)
