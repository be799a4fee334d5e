package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingest metrics
	IngestMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datadex_ingest_messages_total",
			Help: "Total number of ingested notifications by event type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	IngestBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datadex_ingest_batch_size",
			Help:    "Number of messages received per pull",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	IngestPullErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "datadex_ingest_pull_errors_total",
			Help: "Total number of failed pulls from the notification source",
		},
	)

	IngestAckErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "datadex_ingest_ack_errors_total",
			Help: "Total number of failed acknowledgements",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datadex_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datadex_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Catalog metrics
	CatalogQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datadex_catalog_query_duration_seconds",
			Help:    "Catalog operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Blob store metrics
	DescriptorUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datadex_descriptor_uploads_total",
			Help: "Total number of dataset descriptor uploads by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(IngestMessagesTotal)
	prometheus.MustRegister(IngestBatchSize)
	prometheus.MustRegister(IngestPullErrors)
	prometheus.MustRegister(IngestAckErrors)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(CatalogQueryDuration)
	prometheus.MustRegister(DescriptorUploadsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
