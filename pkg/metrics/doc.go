/*
Package metrics provides Prometheus metrics for Datadex.

All metrics are registered at package init and exposed through the /metrics
endpoint of the HTTP surface.

# Metrics

Ingest loop:

  - datadex_ingest_messages_total{event_type, outcome} — outcomes are
    "applied", "ignored", and "failed"
  - datadex_ingest_batch_size — messages per pull
  - datadex_ingest_pull_errors_total
  - datadex_ingest_ack_errors_total

API:

  - datadex_api_requests_total{route, status}
  - datadex_api_request_duration_seconds{route}

Catalog and blob store:

  - datadex_catalog_query_duration_seconds{operation}
  - datadex_descriptor_uploads_total{outcome}

# Usage

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.APIRequestDuration.WithLabelValues(route))

	metrics.IngestMessagesTotal.WithLabelValues("OBJECT_FINALIZE", "applied").Inc()

# Integration Points

  - pkg/ingest: message outcomes, batch sizes, pull/ack errors
  - pkg/api: request counters and durations via middleware
  - pkg/bucket: descriptor upload outcomes
*/
package metrics
