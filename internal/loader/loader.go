// Package loader owns the lazily initialized translation engine handle.
//
// A Loader performs at most one engine load at a time. Callers arriving while
// a load is in flight wait for it and share its result. Once a handle exists it
// is returned immediately and no further progress is reported. A failed load
// leaves the loader uninitialized so the next request can try again.
//
// Engine progress is normalized before it reaches the caller: each artifact
// gets exactly one start record, non-decreasing progress, and exactly one end
// record, followed by a single ready record once the whole load succeeded.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"babel/internal/engine"
	"babel/internal/logging"
	"babel/internal/services"
)

const component = "loader"

// State describes the engine handle lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Loader lazily loads and caches one engine handle.
type Loader struct {
	engine  engine.Engine
	modelID string
	logger  *slog.Logger

	group singleflight.Group

	mu     sync.Mutex
	state  State
	handle engine.Handle
	loads  int
}

// New constructs a loader for modelID on eng.
func New(eng engine.Engine, modelID string, logger *slog.Logger) *Loader {
	return &Loader{
		engine:  eng,
		modelID: modelID,
		logger:  logging.NewComponentLogger(logger, component),
	}
}

// ModelID returns the model identifier passed to the engine.
func (l *Loader) ModelID() string { return l.modelID }

// State reports the current lifecycle state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Loads reports how many engine loads have been started.
func (l *Loader) Loads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

// Handle returns the cached handle, if any.
func (l *Loader) Handle() (engine.Handle, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle, l.handle != nil
}

// EnsureReady returns the engine handle, loading it if necessary. Progress
// records are delivered to onProgress only when this call performs the load;
// callers that join an in-flight load receive none. onProgress may be invoked
// from another goroutine but never concurrently with itself.
func (l *Loader) EnsureReady(ctx context.Context, onProgress engine.ProgressFunc) (engine.Handle, error) {
	if h, ok := l.Handle(); ok {
		return h, nil
	}
	if onProgress == nil {
		onProgress = func(engine.Progress) {}
	}

	ch := l.group.DoChan(l.modelID, func() (any, error) {
		return l.load(ctx, onProgress)
	})
	select {
	case <-ctx.Done():
		return nil, services.Wrap(services.ErrLoadFailure, component, "ensure ready", "wait for load", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(engine.Handle), nil
	}
}

func (l *Loader) load(ctx context.Context, onProgress engine.ProgressFunc) (engine.Handle, error) {
	l.mu.Lock()
	if l.handle != nil {
		h := l.handle
		l.mu.Unlock()
		return h, nil
	}
	l.state = StateLoading
	l.loads++
	l.mu.Unlock()

	start := time.Now()
	l.logger.Info("model load started",
		logging.String("engine", l.engine.Name()),
		logging.String("model", l.modelID),
	)

	norm := newNormalizer(l.modelID, onProgress)
	h, err := l.engine.Load(ctx, l.modelID, norm.observe)
	if err == nil && h == nil {
		err = errors.New("engine returned no handle")
	}
	if err != nil {
		if !services.Classified(err) {
			err = services.Wrap(services.ErrLoadFailure, component, "load", l.modelID, err)
		}
		l.mu.Lock()
		l.state = StateUninitialized
		l.mu.Unlock()
		logging.ErrorWithContext(l.logger, "model load failed", "load_failed",
			logging.String("model", l.modelID),
			logging.Duration("elapsed", time.Since(start)),
			logging.String(logging.FieldErrorHint, "check engine configuration and submit again to retry"),
			logging.Error(err),
		)
		return nil, err
	}

	norm.finish()

	l.mu.Lock()
	l.handle = h
	l.state = StateReady
	l.mu.Unlock()

	l.logger.Info("model load finished",
		logging.String("model", l.modelID),
		logging.Int("artifacts", norm.count()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return h, nil
}
