package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ioc_http_requests_total",
			Help: "HTTP requests served, by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ioc_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ThreatsRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ioc_threats_registered_total",
			Help: "Threats accepted into the registry, by type and severity",
		},
		[]string{"type", "severity"},
	)

	ThreatConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ioc_threat_conflicts_total",
			Help: "Create attempts rejected because the value already exists",
		},
	)

	ThreatsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ioc_threats_deleted_total",
			Help: "Threats removed from the registry",
		},
	)
)
