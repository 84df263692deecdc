package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	BatchesProcessed   *prometheus.CounterVec
	APIErrors          prometheus.Counter
	RequestSeconds     prometheus.Histogram
	AddressesProcessed prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		BatchesProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_batches_processed_total",
			Help: "Total number of processed address batches by outcome.",
		}, []string{"status"}),
		APIErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dispatch_lookup_api_errors_total",
			Help: "Total number of failed exchanges with the lookup API.",
		}),
		RequestSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_lookup_request_duration_seconds",
			Help:    "Duration of requests to the lookup API.",
			Buckets: prometheus.DefBuckets,
		}),
		AddressesProcessed: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_addresses_processed",
			Help: "Number of addresses processed so far in the current run.",
		}),
	}
}
