package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"babel/internal/config"
	"babel/internal/daemon"
	"babel/internal/ipc"
	"babel/internal/logging"
	"babel/internal/testsupport"
	"babel/internal/worker"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

// setupCLITestEnv writes a stub-engine config file the CLI can load with
// --config.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, append(opts, testsupport.WithDirectories())...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "babel.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

// startDaemon runs a daemon with both sockets inside the test process.
func (env *cliTestEnv) startDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	cfg := env.cfg
	store := testsupport.MustOpenHistory(t, cfg)
	logger := logging.NewNop()
	w, err := worker.NewFromConfig(cfg, logger, store)
	if err != nil {
		t.Fatalf("worker.NewFromConfig: %v", err)
	}
	d, err := daemon.New(cfg, store, logger, w)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(d.Stop)

	ctl, err := ipc.NewServer(ctx, cfg.ControlSocketPath(), d, logger, cancel)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	ctl.Serve()
	t.Cleanup(ctl.Close)

	streams, err := ipc.NewStreamServer(ctx, cfg.Paths.SocketPath, d.Serve, logger)
	if err != nil {
		t.Fatalf("ipc.NewStreamServer: %v", err)
	}
	streams.Serve()
	t.Cleanup(streams.Close)
	return d
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, args, "", env.configPath, "")
}

func runCLI(t *testing.T, args []string, socket, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
