package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"babel/internal/config"
	"babel/internal/engine"
	"babel/internal/loader"
	"babel/internal/logging"
	"babel/internal/protocol"
	"babel/internal/translator"
)

const (
	component         = "worker"
	defaultQueueDepth = 8
)

// Recorder persists request lifecycle transitions. history.Store satisfies it.
type Recorder interface {
	RecordQueued(ctx context.Context, req protocol.Request, peer string) error
	RecordRejected(ctx context.Context, req protocol.Request, peer, kind, message string) error
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, output string, loaded bool) error
	MarkFailed(ctx context.Context, id, kind, message string) error
}

// job is one accepted request plus the port its events go back to.
type job struct {
	req  protocol.Request
	port protocol.WorkerPort
	peer string
}

// Worker owns the engine lifecycle and the request queue.
type Worker struct {
	engineName string
	translator *translator.Translator
	recorder   Recorder
	logger     *slog.Logger
	sampler    *logging.ProgressSampler

	queue    chan job
	acceptMu sync.Mutex

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	current string

	ports     atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// Option configures optional Worker behavior.
type Option func(*workerOptions)

type workerOptions struct {
	queueDepth     int
	recorder       Recorder
	progressBucket float64
}

// WithQueueDepth bounds the number of requests waiting behind the active one.
func WithQueueDepth(depth int) Option {
	return func(o *workerOptions) {
		o.queueDepth = depth
	}
}

// WithRecorder persists request history through r.
func WithRecorder(r Recorder) Option {
	return func(o *workerOptions) {
		o.recorder = r
	}
}

// WithProgressLogBucket sets the percentage step between logged progress lines.
func WithProgressLogBucket(bucket float64) Option {
	return func(o *workerOptions) {
		o.progressBucket = bucket
	}
}

// New constructs a worker that loads modelID from eng on first use.
func New(eng engine.Engine, modelID string, logger *slog.Logger, opts ...Option) *Worker {
	options := workerOptions{queueDepth: defaultQueueDepth}
	for _, opt := range opts {
		opt(&options)
	}
	if options.queueDepth <= 0 {
		options.queueDepth = defaultQueueDepth
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	ld := loader.New(eng, modelID, logger)
	return &Worker{
		engineName: eng.Name(),
		translator: translator.New(ld, logger),
		recorder:   options.recorder,
		logger:     logging.NewComponentLogger(logger, component),
		sampler:    logging.NewProgressSampler(options.progressBucket),
		queue:      make(chan job, options.queueDepth),
	}
}

// NewFromConfig builds the configured engine and wraps it in a worker. A nil
// recorder disables history.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, recorder Recorder) (*Worker, error) {
	eng, err := NewEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithQueueDepth(cfg.Worker.QueueDepth),
		WithProgressLogBucket(cfg.Worker.ProgressLogBucket),
	}
	if recorder != nil {
		opts = append(opts, WithRecorder(recorder))
	}
	return New(eng, cfg.Engine.ModelID, logger, opts...), nil
}

// Loader exposes the worker's loader for status reporting.
func (w *Worker) Loader() *loader.Loader { return w.translator.Loader() }

// Start begins consuming the request queue.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	go w.run(runCtx)
	w.logger.Info("worker started",
		logging.String("engine", w.engineName),
		logging.String("model", w.Loader().ModelID()),
		logging.Int("queue_depth", cap(w.queue)),
	)
	return nil
}

// Stop terminates queue processing and waits for the active request. Requests
// still queued are failed so every accepted request gets a terminal event.
func (w *Worker) Stop() {
	// acceptMu orders the flip against accept: once it is released no new
	// job can land in the queue, so failPending sees every accepted request.
	w.acceptMu.Lock()
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.acceptMu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()
	w.acceptMu.Unlock()

	cancel()
	w.wg.Wait()
	w.failPending()
}

func (w *Worker) isRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Worker) setLastError(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}

func (w *Worker) setCurrent(id string) {
	w.mu.Lock()
	w.current = id
	w.mu.Unlock()
}
