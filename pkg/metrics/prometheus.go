// Package metrics provides Prometheus instrumentation for the destination.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecordsBuffered counts records appended to a staging buffer.
	RecordsBuffered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagesync_records_buffered_total",
		Help: "Total number of records appended to a staging buffer",
	}, []string{"stream"})

	// RecordsDropped counts records for streams missing from the catalog.
	RecordsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagesync_records_dropped_total",
		Help: "Total number of records dropped for unknown streams",
	}, []string{"stream"})

	// Flushes counts buffer flushes that wrote a batch file.
	Flushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagesync_flushes_total",
		Help: "Total number of batch files written by buffer flushes",
	}, []string{"stream"})

	// BytesUploaded counts batch file bytes accepted by the stage.
	BytesUploaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagesync_bytes_uploaded_total",
		Help: "Total number of batch file bytes uploaded to stages",
	}, []string{"stage"})

	// UploadAttempts counts presign+PUT attempts by outcome.
	UploadAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagesync_upload_attempts_total",
		Help: "Total number of upload attempts by outcome",
	}, []string{"stage", "outcome"})

	// Checkpoints counts completed checkpoint merges.
	Checkpoints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stagesync_checkpoints_total",
		Help: "Total number of checkpoints merged and acknowledged",
	})

	// CheckpointLatency tracks the duration of a full checkpoint sequence.
	CheckpointLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stagesync_checkpoint_latency_seconds",
		Help:    "Latency of the flush, load, and merge sequence in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})
)

// ServeMetrics starts an HTTP server on the given address to serve
// Prometheus metrics at /metrics.
func ServeMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go server.ListenAndServe()
	return server
}
