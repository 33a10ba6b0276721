package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"babel/internal/config"
	"babel/internal/history"
	"babel/internal/logging"
	"babel/internal/protocol"
	"babel/internal/worker"
)

// Daemon owns the worker and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *history.Store
	worker *worker.Worker

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Worker        worker.StatusSummary
	HistoryCounts map[history.Status]int
	HistoryPath   string
	LockFilePath  string
	SocketPath    string
}

// New constructs a daemon. store may be nil when history is disabled.
func New(cfg *config.Config, store *history.Store, logger *slog.Logger, w *worker.Worker) (*Daemon, error) {
	if cfg == nil || w == nil {
		return nil, errors.New("daemon requires config and worker")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		worker:   w,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and starts the worker.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another babel daemon instance is already running")
	}

	if d.store != nil {
		if n, err := d.store.FailInterrupted(ctx); err != nil {
			logging.WarnWithContext(d.logger, "failed to close interrupted history entries", "history_recovery_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check history database access"),
				logging.String(logging.FieldImpact, "stale entries may show as queued or running"),
			)
		} else if n > 0 {
			d.logger.Info("marked interrupted requests failed", logging.Int64("count", n))
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.worker.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start worker: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("babel daemon started",
		logging.String("lock", d.lockPath),
		logging.String("socket", d.cfg.Paths.SocketPath),
	)
	return nil
}

// Stop stops the worker and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	d.worker.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("babel daemon stopped")
}

// Close stops the daemon and releases the history store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool { return d.running.Load() }

// Serve attaches a connection to the worker until it closes.
func (d *Daemon) Serve(ctx context.Context, port protocol.WorkerPort, peer string) error {
	if !d.running.Load() {
		return errors.New("daemon not running")
	}
	return d.worker.Serve(ctx, port, peer)
}

// History returns the newest limit history entries.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if d.store == nil {
		return nil, errors.New("request history disabled")
	}
	return d.store.List(ctx, limit)
}

// ClearHistory removes every history entry.
func (d *Daemon) ClearHistory(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("request history disabled")
	}
	return d.store.Clear(ctx)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Worker:       d.worker.Status(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.Paths.SocketPath,
	}
	if d.store != nil {
		status.HistoryPath = d.store.Path()
		counts, err := d.store.Counts(ctx)
		if err != nil {
			d.logger.Warn("failed to read history counts", logging.Error(err))
		}
		status.HistoryCounts = counts
	}
	return status
}
