package daemon_test

import (
	"context"
	"testing"
	"time"

	"babel/internal/config"
	"babel/internal/daemon"
	"babel/internal/history"
	"babel/internal/logging"
	"babel/internal/protocol"
	"babel/internal/testsupport"
	"babel/internal/worker"
)

func newDaemon(t *testing.T, cfg *config.Config, store *history.Store) *daemon.Daemon {
	t.Helper()
	logger := logging.NewNop()
	var recorder worker.Recorder
	if store != nil {
		recorder = store
	}
	w, err := worker.NewFromConfig(cfg, logger, recorder)
	if err != nil {
		t.Fatalf("worker.NewFromConfig: %v", err)
	}
	d, err := daemon.New(cfg, store, logger, w)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg, nil)
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running || !status.Worker.Running {
		t.Fatalf("expected daemon and worker to report running: %+v", status)
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("lock path = %q, want %q", status.LockFilePath, cfg.LockPath())
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running || status.Worker.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceIsLockedOut(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg, nil)
	second := newDaemon(t, cfg, nil)
	t.Cleanup(func() {
		second.Close()
		first.Close()
	})

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected second instance to fail while the lock is held")
	}
	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second start after release: %v", err)
	}
}

func TestServeRequiresRunningDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg, nil)
	t.Cleanup(func() {
		d.Close()
	})
	_, port := protocol.Pipe()
	if err := d.Serve(context.Background(), port, "early"); err == nil {
		t.Fatal("expected serve to fail before start")
	}
}

func TestStartFailsInterruptedHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	req := protocol.Request{ID: "left-behind", Text: "Hello, world!", SourceLanguage: "eng_Latn", TargetLanguage: "fra_Latn"}
	testsupport.RecordQueued(t, store, req)

	d := newDaemon(t, cfg, store)
	t.Cleanup(func() {
		d.Stop()
	})
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	entries, err := d.History(ctx, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != history.StatusFailed {
		t.Fatalf("expected interrupted entry to be failed: %+v", entries)
	}
	if got := d.Status(ctx).HistoryCounts[history.StatusFailed]; got != 1 {
		t.Fatalf("failed count = %d, want 1", got)
	}
	removed, err := d.ClearHistory(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("clear history = %d, %v", removed, err)
	}
}

func TestDaemonTranslatesOverPipe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg, nil)
	t.Cleanup(func() {
		d.Close()
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	control, port := protocol.Pipe()
	go func() {
		_ = d.Serve(ctx, port, "pipe")
	}()
	defer control.Close()

	if err := control.Post(protocol.Request{ID: "one", Text: "Hello, world!", SourceLanguage: "eng_Latn", TargetLanguage: "deu_Latn"}); err != nil {
		t.Fatalf("post: %v", err)
	}
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-control.Events():
			if e.Status == protocol.StatusError {
				t.Fatalf("unexpected error event %+v", e)
			}
			if e.Status == protocol.StatusComplete {
				if e.Output != "Hallo, Welt!" {
					t.Fatalf("output = %q", e.Output)
				}
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for completion")
		}
	}
}
