package services

import "context"

type contextKey string

const (
	projectIDKey contextKey = "clef.project_id"
	stageKey     contextKey = "clef.stage"
	requestIDKey contextKey = "clef.request_id"
)

// WithProjectID attaches the project identifier to ctx for log correlation.
func WithProjectID(ctx context.Context, projectID string) context.Context {
	if projectID == "" {
		return ctx
	}
	return context.WithValue(ctx, projectIDKey, projectID)
}

// ProjectIDFromContext returns the project identifier stored on ctx.
func ProjectIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(projectIDKey).(string)
	return id, ok && id != ""
}

// WithStage records the pipeline stage currently executing.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage recorded on ctx.
func StageFromContext(ctx context.Context) (string, bool) {
	stage, ok := ctx.Value(stageKey).(string)
	return stage, ok && stage != ""
}

// WithRequestID attaches an external request correlation identifier.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request identifier recorded on ctx.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}
