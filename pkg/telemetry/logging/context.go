package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// WorkspaceKey is the context key for workspace identifiers.
	WorkspaceKey contextKey = "workspace_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithWorkspace adds a workspace identifier to the context.
func WithWorkspace(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, WorkspaceKey, workspaceID)
}

// GetWorkspace retrieves the workspace identifier from the context.
func GetWorkspace(ctx context.Context) string {
	if workspaceID, ok := ctx.Value(WorkspaceKey).(string); ok {
		return workspaceID
	}
	return ""
}

// FromContext returns the logger annotated with any request ID and
// workspace carried by the context.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	if workspaceID := GetWorkspace(ctx); workspaceID != "" {
		logger = logger.With("workspace_id", workspaceID)
	}
	return logger
}
