// Package translator runs streaming inference against the loaded engine.
//
// Translate returns a Stream immediately. The stream yields display fragments
// as the engine produces them and finally a Result carrying the engine's
// authoritative output. Fragments are previews: the final text is what the
// engine returned, and it is never rebuilt from fragments.
//
// One Translator serializes generations through a single-slot guard, so a
// second caller waits for the first to finish instead of overlapping on the
// shared engine handle.
package translator

import (
	"context"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"babel/internal/engine"
	"babel/internal/loader"
	"babel/internal/logging"
	"babel/internal/protocol"
	"babel/internal/services"
)

const (
	component      = "translator"
	fragmentBuffer = 16
)

// Translator owns the generation slot for one loader.
type Translator struct {
	loader *loader.Loader
	logger *slog.Logger
	slot   chan struct{}
}

// New constructs a translator over l.
func New(l *loader.Loader, logger *slog.Logger) *Translator {
	return &Translator{
		loader: l,
		logger: logging.NewComponentLogger(logger, component),
		slot:   make(chan struct{}, 1),
	}
}

// Loader exposes the underlying loader for status reporting.
func (t *Translator) Loader() *loader.Loader { return t.loader }

// Option customizes a single Translate call.
type Option func(*callOptions)

type callOptions struct {
	onProgress engine.ProgressFunc
}

// WithProgress receives load progress records if this call performs the load.
func WithProgress(fn engine.ProgressFunc) Option {
	return func(o *callOptions) {
		o.onProgress = fn
	}
}

// Result is the outcome of a completed translation.
type Result struct {
	// Text is the engine's final output.
	Text string
	// Streamed is the concatenation of every fragment, in order.
	Streamed string
	// Loaded reports whether this call performed the engine load.
	Loaded  bool
	Elapsed time.Duration
}

// Stream is an in-flight translation.
type Stream struct {
	frags    chan string
	done     chan struct{}
	iterated atomic.Bool
	drainer  sync.Once

	result Result
	err    error
}

// Fragments yields display fragments in production order. The sequence can be
// ranged over once; later ranges yield nothing. Breaking out early is allowed:
// the remaining fragments are discarded in the background.
func (s *Stream) Fragments() iter.Seq[string] {
	return func(yield func(string) bool) {
		if !s.iterated.CompareAndSwap(false, true) {
			return
		}
		for frag := range s.frags {
			if !yield(frag) {
				s.drainer.Do(func() { go s.drain() })
				return
			}
		}
	}
}

// Result waits for the translation to finish, discarding any fragments that
// were not consumed through Fragments.
func (s *Stream) Result() (Result, error) {
	if s.iterated.CompareAndSwap(false, true) {
		s.drain()
	}
	<-s.done
	return s.result, s.err
}

// Done is closed once the result is available.
func (s *Stream) Done() <-chan struct{} { return s.done }

func (s *Stream) drain() {
	for range s.frags {
	}
}

// Translate starts translating req. Failures are reported by Result; the
// fragment sequence simply ends.
func (t *Translator) Translate(ctx context.Context, req protocol.Request, opts ...Option) *Stream {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	s := &Stream{
		frags: make(chan string, fragmentBuffer),
		done:  make(chan struct{}),
	}
	go t.run(ctx, req, o, s)
	return s
}

func (t *Translator) run(ctx context.Context, req protocol.Request, o callOptions, s *Stream) {
	start := time.Now()
	logger := logging.WithContext(ctx, t.logger)
	var streamed strings.Builder
	var loaded atomic.Bool
	defer func() {
		close(s.frags)
		s.result.Loaded = loaded.Load()
		s.result.Streamed = streamed.String()
		s.result.Elapsed = time.Since(start)
		close(s.done)
	}()

	if strings.TrimSpace(req.Text) == "" {
		s.err = services.Wrap(services.ErrValidation, component, "translate", "text is empty", nil)
		return
	}

	select {
	case t.slot <- struct{}{}:
	case <-ctx.Done():
		s.err = services.Wrap(services.ErrInferenceFailure, component, "translate", "wait for generation slot", ctx.Err())
		return
	}
	defer func() { <-t.slot }()

	handle, err := t.loader.EnsureReady(ctx, func(p engine.Progress) {
		if p.Phase == engine.PhaseReady {
			loaded.Store(true)
		}
		if o.onProgress != nil {
			o.onProgress(p)
		}
	})
	if err != nil {
		s.err = err
		return
	}

	send := func(frag string) {
		if frag == "" {
			return
		}
		select {
		case s.frags <- frag:
			streamed.WriteString(frag)
		case <-ctx.Done():
		}
	}

	var frag fragmenter
	text, err := handle.Generate(ctx, req.Text, req.SourceLanguage, req.TargetLanguage, func(piece string) {
		send(frag.push(piece))
	})
	if err != nil {
		if !services.Classified(err) {
			err = services.Wrap(services.ErrInferenceFailure, component, "generate", "", err)
		}
		s.err = err
		return
	}
	send(frag.flush())

	s.result.Text = text
	if strings.TrimSpace(streamed.String()) != strings.TrimSpace(text) {
		logger.Debug("streamed fragments differ from final output",
			logging.Int("streamed_len", streamed.Len()),
			logging.Int("final_len", len(text)),
		)
	}
	logger.Debug("translation finished",
		logging.String("source", req.SourceLanguage),
		logging.String("target", req.TargetLanguage),
		logging.Bool("loaded", loaded.Load()),
		logging.Duration("elapsed", time.Since(start)),
	)
}
