package metrics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"scenecut/internal/metrics"
	"scenecut/internal/services"
)

type failingSink struct{}

func (failingSink) Record(context.Context, metrics.Metric) error { return errors.New("disk full") }

func TestMeasureRecordsOutcome(t *testing.T) {
	sink := &metrics.Memory{}
	rec := metrics.NewRecorder(sink, nil)
	ctx := services.WithAnalysisID(context.Background(), "analysis-1")

	if err := rec.Measure(ctx, "render", map[string]any{"tier": "proxy"}, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Measure returned error: %v", err)
	}
	boom := services.NewError(services.KindTranscodeFailed, "render", "exit 1", nil)
	if err := rec.Measure(ctx, "render", nil, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected operation error to pass through, got %v", err)
	}

	got := sink.Metrics()
	if len(got) != 2 {
		t.Fatalf("expected 2 metrics, got %d", len(got))
	}
	if !got[0].Success || got[0].AnalysisID != "analysis-1" || got[0].Metadata["tier"] != "proxy" {
		t.Fatalf("unexpected first metric %+v", got[0])
	}
	if got[1].Success || got[1].ErrorKind != "TranscodeFailed" || got[1].Error == "" {
		t.Fatalf("unexpected failure metric %+v", got[1])
	}
	if got[1].EndedAt.Before(got[1].StartedAt) {
		t.Fatal("end before start")
	}
}

func TestMeasureIgnoresSinkFailure(t *testing.T) {
	rec := metrics.NewRecorder(failingSink{}, nil)
	if err := rec.Measure(context.Background(), "export", nil, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("sink failure must not fail the operation: %v", err)
	}
}

func TestSummarize(t *testing.T) {
	list := []metrics.Metric{
		{Operation: "render", Duration: 2 * time.Second, Success: true},
		{Operation: "render", Duration: 4 * time.Second, Success: false},
		{Operation: "analyze", Duration: 10 * time.Second, Success: true},
	}
	s := metrics.Summarize(list)
	if s.Total != 3 || s.Successes != 2 || s.Failures != 1 {
		t.Fatalf("unexpected totals %+v", s)
	}
	if len(s.Operations) != 2 || s.Operations[0].Operation != "analyze" {
		t.Fatalf("expected sorted operations, got %+v", s.Operations)
	}
	render := s.Operations[1]
	if render.Min != 2 || render.Max != 4 || render.Avg != 3 || render.SuccessRate != 50 {
		t.Fatalf("unexpected render stats %+v", render)
	}
	if empty := metrics.Summarize(nil); empty.SuccessRate != 0 || len(empty.Operations) != 0 {
		t.Fatalf("unexpected empty summary %+v", empty)
	}
}
