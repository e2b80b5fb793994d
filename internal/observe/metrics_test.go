package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordPrediction(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPrediction(ctx, "Positive")
	m.RecordPrediction(ctx, "Positive")
	m.RecordPrediction(ctx, "Negative")

	met := findMetric(collect(t, reader), "moodmart.predictions")
	if met == nil {
		t.Fatal("moodmart.predictions not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", met.Data)
	}

	got := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("mood"))
		got[v.AsString()] = dp.Value
	}
	if got["Positive"] != 2 || got["Negative"] != 1 {
		t.Errorf("prediction counts = %v", got)
	}
}

func TestRecordTranscription(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTranscription(ctx, "ok", 0.3)
	m.RecordTranscription(ctx, "unavailable", 1.2)

	rm := collect(t, reader)

	hist := findMetric(rm, "moodmart.transcribe.duration")
	if hist == nil {
		t.Fatal("moodmart.transcribe.duration not found")
	}
	h, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", hist.Data)
	}
	var total uint64
	for _, dp := range h.DataPoints {
		total += dp.Count
	}
	if total != 2 {
		t.Errorf("histogram count = %d, want 2", total)
	}

	if findMetric(rm, "moodmart.transcriptions") == nil {
		t.Error("moodmart.transcriptions not found")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordPrediction(ctx, "Neutral")
	m.RecordTranscription(ctx, "ok", 1)
	m.RecordChart(ctx, 1)
}
