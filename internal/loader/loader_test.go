package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"babel/internal/engine"
	"babel/internal/services"
)

type nopHandle struct{ model string }

func (h nopHandle) Model() string { return h.model }

func (h nopHandle) Generate(context.Context, string, string, string, engine.TokenFunc) (string, error) {
	return "", nil
}

// scriptedEngine replays records and optionally blocks until released.
type scriptedEngine struct {
	records []engine.Progress
	gate    chan struct{}
	err     error
	calls   atomic.Int32
}

func (e *scriptedEngine) Name() string { return "scripted" }

func (e *scriptedEngine) Load(ctx context.Context, modelID string, onProgress engine.ProgressFunc) (engine.Handle, error) {
	e.calls.Add(1)
	for _, rec := range e.records {
		onProgress(rec)
	}
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	return nopHandle{model: modelID}, nil
}

func collect(t *testing.T, l *Loader) ([]engine.Progress, error) {
	t.Helper()
	var mu sync.Mutex
	var got []engine.Progress
	_, err := l.EnsureReady(context.Background(), func(p engine.Progress) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})
	mu.Lock()
	defer mu.Unlock()
	return got, err
}

func TestEnsureReadyNormalizesProgress(t *testing.T) {
	eng := &scriptedEngine{records: []engine.Progress{
		{File: "config.json", Phase: engine.PhaseStart},
		{File: "model.bin", Phase: engine.PhaseProgress, Progress: 40},
		{File: "model.bin", Phase: engine.PhaseProgress, Progress: 30},
		{File: "config.json", Phase: engine.PhaseEnd},
		{File: "model.bin", Phase: engine.PhaseProgress, Progress: 85},
		{File: "model.bin", Phase: engine.PhaseProgress, Progress: 85},
		{File: "config.json", Phase: engine.PhaseProgress, Progress: 99},
		{File: "config.json", Phase: engine.PhaseStart},
		{File: "model.bin", Phase: engine.PhaseProgress, Progress: 250},
	}}
	l := New(eng, "demo", nil)

	got, err := collect(t, l)
	if err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}

	type rec struct {
		file  string
		phase engine.Phase
		pct   float64
	}
	want := []rec{
		{"config.json", engine.PhaseStart, 0},
		{"model.bin", engine.PhaseStart, 0},
		{"model.bin", engine.PhaseProgress, 40},
		{"config.json", engine.PhaseEnd, 100},
		{"model.bin", engine.PhaseProgress, 85},
		{"model.bin", engine.PhaseProgress, 100},
		{"model.bin", engine.PhaseEnd, 100},
		{"", engine.PhaseReady, 0},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		g := got[i]
		if g.File != w.file || g.Phase != w.phase || g.Progress != w.pct {
			t.Fatalf("record %d = %+v, want %+v", i, g, w)
		}
		if g.Name != "demo" {
			t.Fatalf("record %d missing model name: %+v", i, g)
		}
	}
	if l.State() != StateReady {
		t.Fatalf("State = %v", l.State())
	}
}

func TestEnsureReadyIsIdempotent(t *testing.T) {
	eng := &scriptedEngine{records: []engine.Progress{{File: "a", Phase: engine.PhaseStart}}}
	l := New(eng, "demo", nil)
	if _, err := collect(t, l); err != nil {
		t.Fatalf("first EnsureReady: %v", err)
	}
	got, err := collect(t, l)
	if err != nil {
		t.Fatalf("second EnsureReady: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("warm call emitted progress: %+v", got)
	}
	if eng.calls.Load() != 1 || l.Loads() != 1 {
		t.Fatalf("engine loaded %d times", eng.calls.Load())
	}
}

func TestConcurrentCallersShareOneLoad(t *testing.T) {
	eng := &scriptedEngine{
		records: []engine.Progress{{File: "a", Phase: engine.PhaseStart}},
		gate:    make(chan struct{}),
	}
	l := New(eng, "demo", nil)

	const callers = 5
	var wg sync.WaitGroup
	var readyRecords atomic.Int32
	handles := make([]engine.Handle, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = l.EnsureReady(context.Background(), func(p engine.Progress) {
				if p.Phase == engine.PhaseReady {
					readyRecords.Add(1)
				}
			})
		}(i)
	}

	deadline := time.After(2 * time.Second)
	for l.State() != StateLoading {
		select {
		case <-deadline:
			t.Fatal("load never started")
		case <-time.After(time.Millisecond):
		}
	}
	close(eng.gate)
	wg.Wait()

	for i := range callers {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if handles[i] != handles[0] {
			t.Fatalf("caller %d received a different handle", i)
		}
	}
	if eng.calls.Load() != 1 {
		t.Fatalf("engine loaded %d times", eng.calls.Load())
	}
	if readyRecords.Load() != 1 {
		t.Fatalf("ready emitted %d times", readyRecords.Load())
	}
}

func TestFailedLoadIsRetryable(t *testing.T) {
	eng := &scriptedEngine{
		records: []engine.Progress{{File: "a", Phase: engine.PhaseProgress, Progress: 10}},
		err:     errors.New("network down"),
	}
	l := New(eng, "demo", nil)

	got, err := collect(t, l)
	if !errors.Is(err, services.ErrLoadFailure) {
		t.Fatalf("expected load failure, got %v", err)
	}
	for _, rec := range got {
		if rec.Phase == engine.PhaseReady {
			t.Fatal("ready emitted after failure")
		}
	}
	if l.State() != StateUninitialized {
		t.Fatalf("State = %v after failure", l.State())
	}

	eng.err = nil
	if _, err := collect(t, l); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if eng.calls.Load() != 2 || l.State() != StateReady {
		t.Fatalf("calls=%d state=%v", eng.calls.Load(), l.State())
	}
}

func TestClassifiedLoadErrorsKeepTheirKind(t *testing.T) {
	eng := &scriptedEngine{err: services.Wrap(services.ErrUnsupportedLanguage, "engine", "load", "bad pair", nil)}
	l := New(eng, "demo", nil)
	_, err := l.EnsureReady(context.Background(), nil)
	if services.Kind(err) != services.KindUnsupportedLanguage {
		t.Fatalf("Kind = %q", services.Kind(err))
	}
}

func TestEnsureReadyHonoursContext(t *testing.T) {
	eng := &scriptedEngine{gate: make(chan struct{})}
	l := New(eng, "demo", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.EnsureReady(ctx, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{
		StateUninitialized: "uninitialized",
		StateLoading:       "loading",
		StateReady:         "ready",
	} {
		if state.String() != want {
			t.Errorf("%d.String() = %q", state, state.String())
		}
	}
}
