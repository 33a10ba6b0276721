package logging

import (
	"context"
	"log/slog"

	"babel/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRequestID is the standardized key for translation request identifiers.
	FieldRequestID = "request_id"
	// FieldArtifact is the standardized key for model artifact names.
	FieldArtifact = "artifact"
	// FieldPeer labels the connection a request arrived on.
	FieldPeer = "peer"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRequestID, id))
	}
	if file, ok := services.ArtifactFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldArtifact, file))
	}
	if peer, ok := services.PeerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPeer, peer))
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
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return logger.With(args...)
}
