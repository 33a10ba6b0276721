package ipc_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"babel/internal/config"
	"babel/internal/daemon"
	"babel/internal/ipc"
	"babel/internal/logging"
	"babel/internal/protocol"
	"babel/internal/session"
	"babel/internal/testsupport"
	"babel/internal/worker"
)

type harness struct {
	cfg     *config.Config
	daemon  *daemon.Daemon
	stopped chan struct{}
}

func startHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
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

	h := &harness{cfg: cfg, daemon: d, stopped: make(chan struct{})}
	ctl, err := ipc.NewServer(ctx, cfg.ControlSocketPath(), d, logger, func() { close(h.stopped) })
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
	return h
}

func dial(t *testing.T, path string) *ipc.Client {
	t.Helper()
	client, err := ipc.Dial(path)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return client
}

func translate(t *testing.T, path string, req protocol.Request) string {
	t.Helper()
	conn, err := ipc.DialStream(path)
	if err != nil {
		t.Fatalf("ipc.DialStream: %v", err)
	}
	s := session.New(conn, logging.NewNop())
	defer s.Close()
	if _, err := s.Submit(req); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := s.AwaitIdle(ctx)
	if err != nil {
		t.Fatalf("await idle: %v", err)
	}
	if state.Err != nil {
		t.Fatalf("translation failed: %+v", state.Err)
	}
	return state.Final
}

func TestStatusOverControlSocket(t *testing.T) {
	h := startHarness(t)
	client := dial(t, h.cfg.ControlSocketPath())

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || !status.Worker.Running {
		t.Fatalf("expected running daemon: %+v", status)
	}
	if status.Worker.Engine != config.EngineStub || status.Worker.LoaderState != "uninitialized" {
		t.Fatalf("unexpected worker status: %+v", status.Worker)
	}
	if status.PID == 0 || status.LockPath != h.cfg.LockPath() || status.SocketPath != h.cfg.Paths.SocketPath {
		t.Fatalf("unexpected paths in status: %+v", status)
	}
}

func TestTranslateOverStreamSocket(t *testing.T) {
	h := startHarness(t)
	req := protocol.Request{Text: "I love walking my dog.", SourceLanguage: "eng_Latn", TargetLanguage: "fra_Latn"}

	if got := translate(t, h.cfg.Paths.SocketPath, req); got != "J'adore promener mon chien." {
		t.Fatalf("first translation = %q", got)
	}
	req.TargetLanguage = "spa_Latn"
	if got := translate(t, h.cfg.Paths.SocketPath, req); got != "Me encanta pasear a mi perro." {
		t.Fatalf("second translation = %q", got)
	}

	client := dial(t, h.cfg.ControlSocketPath())
	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.Worker.Loads != 1 || status.Worker.LoaderState != "ready" || status.Worker.Processed != 2 {
		t.Fatalf("expected one load shared by both connections: %+v", status.Worker)
	}

	list, err := client.HistoryList(10)
	if err != nil {
		t.Fatalf("HistoryList RPC failed: %v", err)
	}
	if len(list.Entries) != 2 {
		t.Fatalf("history entries = %d, want 2", len(list.Entries))
	}
	newest := list.Entries[0]
	if newest.Status != "completed" || newest.Output != "Me encanta pasear a mi perro." || newest.Loaded {
		t.Fatalf("unexpected newest entry %+v", newest)
	}
	if !strings.HasPrefix(newest.Peer, "unix#") {
		t.Fatalf("peer = %q, want unix#N", newest.Peer)
	}

	cleared, err := client.HistoryClear()
	if err != nil {
		t.Fatalf("HistoryClear RPC failed: %v", err)
	}
	if cleared.Removed != 2 {
		t.Fatalf("removed = %d, want 2", cleared.Removed)
	}
}

func TestStopOverControlSocket(t *testing.T) {
	h := startHarness(t)
	client := dial(t, h.cfg.ControlSocketPath())

	resp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !resp.Stopped {
		t.Fatal("expected Stopped=true")
	}
	select {
	case <-h.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop callback not invoked")
	}
	if h.daemon.Running() {
		t.Fatal("daemon still running after stop")
	}
}

func TestDialWithoutDaemonFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := ipc.Dial(cfg.ControlSocketPath()); err == nil {
		t.Fatal("expected dial to fail without a daemon")
	}
	if _, err := ipc.DialStream(cfg.Paths.SocketPath); err == nil {
		t.Fatal("expected stream dial to fail without a daemon")
	}
}
