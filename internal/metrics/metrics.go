package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocoder_matches_total",
		Help: "Address match attempts by outcome (district, city, geocoder, failed)",
	}, []string{"outcome"})
	MatchConfidence = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geocoder_match_confidence",
		Help:    "Confidence of successful local matches",
		Buckets: []float64{0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
	})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocoder_cache_hits_total",
		Help: "Resolution cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocoder_cache_misses_total",
		Help: "Resolution cache misses",
	})
	BatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocoder_batches_total",
		Help: "Coordinate update batches by status (ok, failed)",
	}, []string{"status"})
	BatchRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocoder_batch_retries_total",
		Help: "Batch writes retried after a transient error",
	})
	RowsUpdatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocoder_rows_updated_total",
		Help: "Device rows whose coordinates were written",
	})
	ExternalRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocoder_external_requests_total",
		Help: "External geocoder requests by status (hit, miss, error)",
	}, []string{"status"})
	ExternalDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geocoder_external_duration_ms",
		Help:    "External geocoder call duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000},
	})
)

func init() {
	prometheus.MustRegister(MatchesTotal)
	prometheus.MustRegister(MatchConfidence)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(BatchesTotal)
	prometheus.MustRegister(BatchRetriesTotal)
	prometheus.MustRegister(RowsUpdatedTotal)
	prometheus.MustRegister(ExternalRequestsTotal)
	prometheus.MustRegister(ExternalDurationMs)
}

// Handler exposes the registered metrics for scraping.
func Handler() http.Handler { return promhttp.Handler() }
