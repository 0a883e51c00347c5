package logging

import (
	"context"
	"log/slog"

	"scenecut/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldAnalysisID is the standardized key for analysis identifiers.
	FieldAnalysisID = "analysis_id"
	// FieldSceneID is the standardized key for scene identifiers.
	FieldSceneID = "scene_id"
	// FieldTier is the standardized key for derivative tiers (proxy, mezzanine).
	FieldTier = "tier"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the stable failure tag.
	FieldErrorKind = "error_kind"
	// FieldDecisionType names the decision being logged.
	FieldDecisionType = "decision_type"
	// FieldProgressPercent carries a progress percentage.
	FieldProgressPercent = "progress_percent"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.AnalysisIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAnalysisID, id))
	}
	if id, ok := services.SceneIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSceneID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
