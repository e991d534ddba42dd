package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ResolutionsTotal counts resolved line items by outcome
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nfe_catalog_resolutions_total",
			Help: "Line items resolved by the import pipeline, by outcome",
		},
		[]string{"outcome"},
	)

	// FuzzyScore records the best similarity observed for unresolved items
	FuzzyScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nfe_catalog_fuzzy_score",
			Help:    "Best fuzzy score found for items routed to the inbox",
			Buckets: []float64{10, 25, 50, 60, 70, 80, 85, 90, 95, 100},
		},
	)

	// InboxActions counts reviewer actions on inbox rows
	InboxActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nfe_catalog_inbox_actions_total",
			Help: "Reviewer actions on inbox items",
		},
		[]string{"action"},
	)

	// ImportsTotal counts document and spreadsheet imports
	ImportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nfe_catalog_imports_total",
			Help: "Imports by kind and status",
		},
		[]string{"kind", "status"},
	)

	// RequestCounter counts all HTTP requests with labels
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration records request duration in seconds
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Register registers every collector with reg. Call once at startup.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		ResolutionsTotal,
		FuzzyScore,
		InboxActions,
		ImportsTotal,
		RequestCounter,
		RequestDuration,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}
