package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"babel/internal/engine"
	"babel/internal/engine/stub"
	"babel/internal/logging"
	"babel/internal/protocol"
)

const eventTimeout = 5 * time.Second

var testArtifacts = []string{"config.json", "model.bin"}

func sampleRequest(id string) protocol.Request {
	return protocol.Request{ID: id, Text: "I love walking my dog.", SourceLanguage: "eng_Latn", TargetLanguage: "fra_Latn"}
}

func newStubEngine() *stub.Engine {
	return stub.New(stub.Options{Artifacts: testArtifacts, ChunkCount: 2})
}

func startWorker(t *testing.T, eng engine.Engine, opts ...Option) *Worker {
	t.Helper()
	w := New(eng, "test/nllb", logging.NewNop(), opts...)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

// attach connects a fresh pipe to w and returns its control side.
func attach(t *testing.T, w *Worker, peer string) protocol.ControlPort {
	t.Helper()
	control, port := protocol.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Serve(ctx, port, peer)
	}()
	t.Cleanup(func() {
		_ = control.Close()
		cancel()
		<-done
		_ = port.Close()
	})
	return control
}

// rawPort is a WorkerPort that skips sender-side validation, standing in for
// clients that write requests directly.
type rawPort struct {
	requests chan protocol.Request
	events   chan protocol.Event
}

func (p *rawPort) Requests() <-chan protocol.Request { return p.requests }

func (p *rawPort) Emit(e protocol.Event) error {
	p.events <- e
	return nil
}

func (p *rawPort) Close() error { return nil }

func attachRaw(t *testing.T, w *Worker, peer string) *rawPort {
	t.Helper()
	port := &rawPort{requests: make(chan protocol.Request, 8), events: make(chan protocol.Event, 256)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Serve(context.Background(), port, peer)
	}()
	t.Cleanup(func() {
		close(port.requests)
		<-done
	})
	return port
}

func post(t *testing.T, control protocol.ControlPort, req protocol.Request) {
	t.Helper()
	if err := control.Post(req); err != nil {
		t.Fatalf("post: %v", err)
	}
}

func terminal(e protocol.Event) bool {
	return e.Status == protocol.StatusComplete || e.Status == protocol.StatusError
}

// collectUntil reads events until n terminal events arrived.
func collectUntil(t *testing.T, source <-chan protocol.Event, n int) []protocol.Event {
	t.Helper()
	var events []protocol.Event
	timer := time.NewTimer(eventTimeout)
	defer timer.Stop()
	for n > 0 {
		select {
		case e, ok := <-source:
			if !ok {
				t.Fatalf("event channel closed after %d events", len(events))
			}
			events = append(events, e)
			if terminal(e) {
				n--
			}
		case <-timer.C:
			t.Fatalf("timed out waiting for events; got %d", len(events))
		}
	}
	return events
}

func countStatus(events []protocol.Event, status protocol.Status) int {
	n := 0
	for _, e := range events {
		if e.Status == status {
			n++
		}
	}
	return n
}

func forRequest(events []protocol.Event, id string) []protocol.Event {
	var out []protocol.Event
	for _, e := range events {
		if e.RequestID == id {
			out = append(out, e)
		}
	}
	return out
}

// gatedEngine blocks every generation until release is closed and tracks
// how many generations overlap.
type gatedEngine struct {
	release chan struct{}
	started chan string
	active  atomic.Int32
	peak    atomic.Int32
}

func newGatedEngine() *gatedEngine {
	return &gatedEngine{release: make(chan struct{}), started: make(chan string, 16)}
}

func (e *gatedEngine) Name() string { return "gated" }

func (e *gatedEngine) Load(context.Context, string, engine.ProgressFunc) (engine.Handle, error) {
	return e, nil
}

func (e *gatedEngine) Model() string { return "gated" }

func (e *gatedEngine) Generate(ctx context.Context, text, _, _ string, onToken engine.TokenFunc) (string, error) {
	n := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		peak := e.peak.Load()
		if n <= peak || e.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	e.started <- text
	select {
	case <-e.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	onToken(text)
	return text, nil
}

func (e *gatedEngine) awaitStart(t *testing.T) string {
	t.Helper()
	select {
	case text := <-e.started:
		return text
	case <-time.After(eventTimeout):
		t.Fatal("generation never started")
		return ""
	}
}
