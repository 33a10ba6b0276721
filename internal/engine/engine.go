// Package engine defines the boundary between the worker core and a concrete
// translation engine.
//
// An Engine loads a model once and returns a Handle. Loading reports
// per-artifact progress through a callback; generation streams raw token
// pieces through another callback and returns the authoritative final text.
// Implementations live in subpackages (stub, remote).
package engine

import "context"

// Phase identifies the kind of a load progress record.
type Phase string

const (
	PhaseStart    Phase = "start"
	PhaseProgress Phase = "progress"
	PhaseEnd      Phase = "end"
	// PhaseReady is emitted once by the loader after every artifact ended.
	PhaseReady Phase = "ready"
)

// Progress is a single load progress record for one artifact.
type Progress struct {
	File     string
	Phase    Phase
	Progress float64
	Name     string
	Loaded   int64
	Total    int64
}

// ProgressFunc receives load progress records in order.
type ProgressFunc func(Progress)

// TokenFunc receives generated token pieces in order.
type TokenFunc func(piece string)

// Engine loads translation models.
type Engine interface {
	// Name identifies the engine kind in logs and status output.
	Name() string
	// Load prepares modelID, reporting progress through onProgress. It is
	// called at most once per successful load by the loader.
	Load(ctx context.Context, modelID string, onProgress ProgressFunc) (Handle, error)
}

// Handle is a loaded model ready for inference.
type Handle interface {
	// Model returns the identifier the handle was loaded with.
	Model() string
	// Generate translates text from src to tgt. onToken is invoked for every
	// raw piece as it is produced; the returned string is the final output.
	Generate(ctx context.Context, text, src, tgt string, onToken TokenFunc) (string, error)
}

// ClampPercent bounds p to [0, 100].
func ClampPercent(p float64) float64 {
	switch {
	case p != p:
		return 0
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
