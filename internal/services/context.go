package services

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	artifactKey  contextKey = "artifact"
	peerKey      contextKey = "peer"
)

// WithRequestID annotates context with a translation request identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the request identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithArtifact annotates context with the model artifact currently loading.
func WithArtifact(ctx context.Context, file string) context.Context {
	if file == "" {
		return ctx
	}
	return context.WithValue(ctx, artifactKey, file)
}

// ArtifactFromContext returns the artifact name if present.
func ArtifactFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(artifactKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPeer annotates context with the label of the connection that sent a request.
func WithPeer(ctx context.Context, peer string) context.Context {
	if peer == "" {
		return ctx
	}
	return context.WithValue(ctx, peerKey, peer)
}

// PeerFromContext returns the connection label if present.
func PeerFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(peerKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
