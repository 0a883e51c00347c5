package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"scenecut/internal/logging"
	"scenecut/internal/services"
)

// Metric is one timed operation.
type Metric struct {
	Operation  string         `json:"operation"`
	AnalysisID string         `json:"analysis_id,omitempty"`
	StartedAt  time.Time      `json:"start_time"`
	EndedAt    time.Time      `json:"end_time"`
	Duration   time.Duration  `json:"duration_ns"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  string         `json:"error_kind,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Sink receives finished metrics.
type Sink interface {
	Record(ctx context.Context, m Metric) error
}

// Nop discards metrics.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(context.Context, Metric) error { return nil }

// Memory keeps metrics in process.
type Memory struct {
	mu      sync.Mutex
	metrics []Metric
}

// Record implements Sink.
func (m *Memory) Record(_ context.Context, metric Metric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = append(m.metrics, metric)
	return nil
}

// Metrics returns a snapshot of everything recorded.
func (m *Memory) Metrics() []Metric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Metric(nil), m.metrics...)
}

// Recorder measures operations and forwards them to a Sink.
type Recorder struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder builds a recorder. A nil sink discards metrics.
func NewRecorder(sink Sink, logger *slog.Logger) *Recorder {
	if sink == nil {
		sink = Nop{}
	}
	return &Recorder{sink: sink, logger: logging.NewComponentLogger(logger, "metrics"), now: time.Now}
}

// Measure runs fn and records its timing and outcome. fn's error is
// returned unchanged.
func (r *Recorder) Measure(ctx context.Context, operation string, metadata map[string]any, fn func(context.Context) error) error {
	if r == nil {
		return fn(ctx)
	}
	started := r.now()
	err := fn(ctx)
	ended := r.now()

	metric := Metric{
		Operation: operation,
		StartedAt: started.UTC(),
		EndedAt:   ended.UTC(),
		Duration:  ended.Sub(started),
		Success:   err == nil,
		Metadata:  metadata,
	}
	if id, ok := services.AnalysisIDFromContext(ctx); ok {
		metric.AnalysisID = id
	}
	if err != nil {
		metric.Error = err.Error()
		metric.ErrorKind = services.Tag(err)
	}

	// Recording must survive a cancelled operation context.
	if recErr := r.sink.Record(context.WithoutCancel(ctx), metric); recErr != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "metric not recorded", "metric_record_failed",
			logging.String("operation", operation),
			logging.String(logging.FieldImpact, "operation timing missing from metrics"),
			logging.Error(recErr),
		)
	}
	return err
}
