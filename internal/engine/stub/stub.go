// Package stub implements a deterministic local translation engine.
//
// The stub simulates a multi-artifact model download with interleaved chunked
// progress and generates output token by token from a small phrase table. It
// backs the default configuration and the package tests of the worker core.
package stub

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"babel/internal/config"
	"babel/internal/engine"
	"babel/internal/language"
	"babel/internal/logging"
	"babel/internal/services"
)

const (
	component       = "stub"
	maxPieceRunes   = 4
	minArtifactSize = 64 << 10
)

// Options configures the simulated engine.
type Options struct {
	Artifacts  []string
	ChunkCount int
	StepDelay  time.Duration
	TokenDelay time.Duration
	Logger     *slog.Logger
}

// Engine is the simulated engine. It is safe for concurrent use.
type Engine struct {
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	loads     int
	failLoads int
}

// New constructs a stub engine. Missing options fall back to the config defaults.
func New(opts Options) *Engine {
	if len(opts.Artifacts) == 0 {
		opts.Artifacts = config.DefaultStubArtifacts()
	}
	if opts.ChunkCount <= 0 {
		opts.ChunkCount = 10
	}
	return &Engine{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, component),
	}
}

// NewFromConfig builds a stub engine from the [stub] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Engine {
	return New(Options{
		Artifacts:  cfg.Stub.Artifacts,
		ChunkCount: cfg.Stub.ChunkCount,
		StepDelay:  cfg.StubStepDelay(),
		TokenDelay: cfg.StubTokenDelay(),
		Logger:     logger,
	})
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return config.EngineStub }

// FailNextLoads makes the next n Load calls fail after the first progress round.
func (e *Engine) FailNextLoads(n int) {
	e.mu.Lock()
	e.failLoads = n
	e.mu.Unlock()
}

// LoadCount reports how many times Load has been called.
func (e *Engine) LoadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads
}

// Load simulates downloading every artifact. Start records for all artifacts
// are emitted first, then progress advances round-robin so files interleave.
func (e *Engine) Load(ctx context.Context, modelID string, onProgress engine.ProgressFunc) (engine.Handle, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, services.Wrap(services.ErrLoadFailure, component, "load", "model id required", nil)
	}
	if onProgress == nil {
		onProgress = func(engine.Progress) {}
	}

	e.mu.Lock()
	e.loads++
	fail := e.failLoads > 0
	if fail {
		e.failLoads--
	}
	e.mu.Unlock()

	e.logger.Debug("simulated load started",
		logging.String("model", modelID),
		logging.Int("artifacts", len(e.opts.Artifacts)),
	)

	sizes := make([]int64, len(e.opts.Artifacts))
	for i, file := range e.opts.Artifacts {
		sizes[i] = artifactSize(file)
		onProgress(engine.Progress{File: file, Phase: engine.PhaseStart, Name: modelID, Total: sizes[i]})
	}

	steps := e.opts.ChunkCount
	for step := 1; step <= steps; step++ {
		if err := sleepContext(ctx, e.opts.StepDelay); err != nil {
			return nil, services.Wrap(services.ErrLoadFailure, component, "load", "interrupted", err)
		}
		if fail && step == steps/2+1 {
			return nil, services.Wrap(services.ErrLoadFailure, component, "load", "simulated download failure", nil)
		}
		for i, file := range e.opts.Artifacts {
			loaded := sizes[i] * int64(step) / int64(steps)
			onProgress(engine.Progress{
				File:     file,
				Phase:    engine.PhaseProgress,
				Progress: 100 * float64(step) / float64(steps),
				Name:     modelID,
				Loaded:   loaded,
				Total:    sizes[i],
			})
			if step == steps {
				onProgress(engine.Progress{File: file, Phase: engine.PhaseEnd, Name: modelID, Loaded: sizes[i], Total: sizes[i]})
			}
		}
	}

	return &handle{model: modelID, tokenDelay: e.opts.TokenDelay}, nil
}

type handle struct {
	model      string
	tokenDelay time.Duration
}

func (h *handle) Model() string { return h.model }

func (h *handle) Generate(ctx context.Context, text, src, tgt string, onToken engine.TokenFunc) (string, error) {
	if !language.Supported(src) {
		return "", services.Wrap(services.ErrUnsupportedLanguage, component, "generate", fmt.Sprintf("source language %q", src), nil)
	}
	if !language.Supported(tgt) {
		return "", services.Wrap(services.ErrUnsupportedLanguage, component, "generate", fmt.Sprintf("target language %q", tgt), nil)
	}
	if strings.TrimSpace(text) == "" {
		return "", services.Wrap(services.ErrInferenceFailure, component, "generate", "empty input", nil)
	}

	output := Translate(text, src, tgt)
	for _, piece := range Pieces(output) {
		if err := sleepContext(ctx, h.tokenDelay); err != nil {
			return "", services.Wrap(services.ErrInferenceFailure, component, "generate", "interrupted", err)
		}
		if onToken != nil {
			onToken(piece)
		}
	}
	return output, nil
}

// Pieces splits s into token-like pieces: CJK runes stand alone, other words
// keep their leading whitespace and are cut into chunks of a few runes.
func Pieces(s string) []string {
	var pieces []string
	var cur strings.Builder
	curRunes := 0
	flush := func() {
		if cur.Len() > 0 {
			pieces = append(pieces, cur.String())
			cur.Reset()
			curRunes = 0
		}
	}
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		switch {
		case language.IsCJK(r):
			flush()
			pieces = append(pieces, string(r))
		case r == ' ' || r == '\n' || r == '\t':
			flush()
			cur.WriteRune(r)
			curRunes++
		default:
			if curRunes >= maxPieceRunes {
				flush()
			}
			cur.WriteRune(r)
			curRunes++
		}
	}
	flush()
	return pieces
}

func artifactSize(file string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(file))
	size := int64(minArtifactSize + h.Sum32()%(1<<20))
	if strings.HasSuffix(file, ".onnx") {
		size *= 64
	}
	return size
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
