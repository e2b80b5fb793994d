// Package observe provides OpenTelemetry metrics, tracing, and the HTTP
// middleware that ties them to the request log.
//
// Metrics are exported through a Prometheus bridge set up by [InitProvider]
// and scraped from /metrics. Tests should build their own [Metrics] with
// [NewMetrics] and a ManualReader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/hpungsan/moodmart"

// Metrics holds the application's metric instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Predictions counts classifications. Attribute: mood.
	Predictions metric.Int64Counter

	// Transcriptions counts transcription attempts. Attribute: outcome
	// ("ok", "unrecognized", "unavailable", "error").
	Transcriptions metric.Int64Counter

	// TranscribeDuration tracks transcription latency.
	TranscribeDuration metric.Float64Histogram

	// ChartDuration tracks chart rendering latency.
	ChartDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request latency. Attributes: method, path, status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Predictions, err = m.Int64Counter("moodmart.predictions",
		metric.WithDescription("Total mood classifications by mood."),
	); err != nil {
		return nil, err
	}
	if met.Transcriptions, err = m.Int64Counter("moodmart.transcriptions",
		metric.WithDescription("Total transcription attempts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("moodmart.transcribe.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChartDuration, err = m.Float64Histogram("moodmart.chart.duration",
		metric.WithDescription("Latency of mood chart rendering."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("moodmart.http.request.duration",
		metric.WithDescription("HTTP request latency by method, path, and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level instance built on the global
// MeterProvider. Call it after InitProvider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordPrediction counts one classification.
func (m *Metrics) RecordPrediction(ctx context.Context, mood string) {
	if m == nil {
		return
	}
	m.Predictions.Add(ctx, 1, metric.WithAttributes(attribute.String("mood", mood)))
}

// RecordTranscription records the outcome and latency of one transcription.
func (m *Metrics) RecordTranscription(ctx context.Context, outcome string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Transcriptions.Add(ctx, 1, attrs)
	m.TranscribeDuration.Record(ctx, seconds, attrs)
}

// RecordChart records one chart render.
func (m *Metrics) RecordChart(ctx context.Context, seconds float64) {
	if m == nil {
		return
	}
	m.ChartDuration.Record(ctx, seconds)
}
