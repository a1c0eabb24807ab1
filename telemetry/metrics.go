// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	AggregationsTotal      prometheus.Counter
	AggregationsSuperseded prometheus.Counter
	ClipRequests           prometheus.Counter
	ClipsFailed            prometheus.Counter
	SegmentFetchesStarted  prometheus.Counter
	SegmentFetchesFailed   prometheus.Counter
	ChatLoadsTotal         prometheus.Counter

	// Histograms (seconds)
	AggregationDuration  prometheus.Observer
	ClipAssemblyDuration prometheus.Observer
	ChatLoadDuration     prometheus.Observer

	// Gauges
	SegmentFetchInFlight prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		AggregationsTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "autoclip_aggregations_total", Help: "Number of chat aggregation jobs run"})
		AggregationsSuperseded = promauto.NewCounter(prometheus.CounterOpts{Name: "autoclip_aggregations_superseded_total", Help: "Number of aggregation jobs discarded by a newer request for the same video"})
		ClipRequests = promauto.NewCounter(prometheus.CounterOpts{Name: "autoclip_clip_requests_total", Help: "Number of clip download requests"})
		ClipsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "autoclip_clips_failed_total", Help: "Number of clip assemblies that failed"})
		SegmentFetchesStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "autoclip_segment_fetches_started_total", Help: "Number of HLS segment fetches started"})
		SegmentFetchesFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "autoclip_segment_fetches_failed_total", Help: "Number of HLS segment fetches failed"})
		ChatLoadsTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "autoclip_chat_loads_total", Help: "Number of VOD chat history loads"})
		AggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "autoclip_aggregation_duration_seconds", Help: "Aggregation job duration seconds", Buckets: prometheus.DefBuckets})
		ClipAssemblyDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "autoclip_clip_assembly_duration_seconds", Help: "Clip assembly duration seconds", Buckets: prometheus.ExponentialBuckets(0.1, 2, 12)})
		ChatLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "autoclip_chat_load_duration_seconds", Help: "Chat history load duration seconds", Buckets: prometheus.DefBuckets})
		SegmentFetchInFlight = promauto.NewGauge(prometheus.GaugeOpts{Name: "autoclip_segment_fetches_in_flight", Help: "Current number of in-flight segment fetches"})
	})
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
