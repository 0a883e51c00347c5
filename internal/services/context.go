package services

import "context"

type contextKey string

const (
	analysisIDKey contextKey = "analysis_id"
	sceneIDKey    contextKey = "scene_id"
	stageKey      contextKey = "stage"
	requestIDKey  contextKey = "request_id"
)

// WithAnalysisID annotates context with the analysis identifier.
func WithAnalysisID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, analysisIDKey, id)
}

// AnalysisIDFromContext extracts the analysis identifier if present.
func AnalysisIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(analysisIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSceneID annotates context with the scene identifier.
func WithSceneID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sceneIDKey, id)
}

// SceneIDFromContext extracts the scene identifier if present.
func SceneIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sceneIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
