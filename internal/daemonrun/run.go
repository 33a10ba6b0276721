// Package daemonrun wires configuration, history, the worker, and both IPC
// sockets into the long-running babel daemon process.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"babel/internal/config"
	"babel/internal/daemon"
	"babel/internal/history"
	"babel/internal/ipc"
	"babel/internal/logging"
	"babel/internal/preflight"
	"babel/internal/worker"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the babel daemon and blocks until a signal or a Stop RPC arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg, true)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logPreflight(signalCtx, logger, cfg)

	var store *history.Store
	var recorder worker.Recorder
	if cfg.History.Enabled {
		store, err = history.Open(cfg)
		if err != nil {
			logger.Error("open history store", logging.Error(err))
			return err
		}
		defer store.Close()
		recorder = store
	}

	w, err := worker.NewFromConfig(cfg, logger, recorder)
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}

	d, err := daemon.New(cfg, store, logger, w)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	control, err := ipc.NewServer(signalCtx, cfg.ControlSocketPath(), d, logger, cancel)
	if err != nil {
		return fmt.Errorf("start control server: %w", err)
	}
	defer control.Close()
	control.Serve()

	stream, err := ipc.NewStreamServer(signalCtx, cfg.Paths.SocketPath, d.Serve, logger)
	if err != nil {
		return fmt.Errorf("start translation server: %w", err)
	}
	defer stream.Close()
	stream.Serve()

	logger.Info("babel daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("engine", cfg.Engine.Kind),
		logging.String("model", cfg.Engine.ModelID),
		logging.String("socket", cfg.Paths.SocketPath),
		logging.String("control_socket", cfg.ControlSocketPath()),
		logging.Int("pid", os.Getpid()),
	)

	<-signalCtx.Done()
	logger.Info("babel daemon shutting down")
	return nil
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(ctx, cfg)
	for _, r := range preflight.Failed(results) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "translation requests may fail until resolved"),
		)
	}
	logger.Info("preflight complete",
		logging.Int("checks", len(results)),
		logging.Int("failed", len(preflight.Failed(results))),
	)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
