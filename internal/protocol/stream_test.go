package protocol

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

func TestStreamConnRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	control := NewStreamConn(a)
	worker := NewStreamConn(b)
	defer control.Close()
	defer worker.Close()

	req := Request{ID: "r1", Text: "I love walking my dog.", SourceLanguage: "eng_Latn", TargetLanguage: "fra_Latn"}
	if err := control.Post(req); err != nil {
		t.Fatalf("Post: %v", err)
	}
	got, ok := recvRequest(t, worker.Requests())
	if !ok || got != req {
		t.Fatalf("request = %+v, want %+v", got, req)
	}

	events := []Event{
		Initiate("model.bin", "demo", 10),
		ProgressUpdate("model.bin", 40, 4, 10),
		Done("model.bin"),
		Ready(),
		Update("J'adore "),
		Complete("J'adore promener mon chien.").WithRequest("r1"),
	}
	go func() {
		for _, e := range events {
			if err := worker.Emit(e); err != nil {
				t.Errorf("Emit: %v", err)
				return
			}
		}
	}()
	for i, want := range events {
		e, ok := recvEvent(t, control.Events())
		if !ok || e != want {
			t.Fatalf("event %d = %+v, want %+v", i, e, want)
		}
	}
}

func TestStreamConnPeerCloseEndsChannels(t *testing.T) {
	a, b := net.Pipe()
	control := NewStreamConn(a)
	defer control.Close()
	b.Close()

	if _, ok := recvEvent(t, control.Events()); ok {
		t.Fatal("events should close when the peer hangs up")
	}
	if control.Err() != nil {
		t.Fatalf("clean hangup should not record an error: %v", control.Err())
	}
}

func TestStreamConnMalformedInput(t *testing.T) {
	a, b := net.Pipe()
	worker := NewStreamConn(a)
	defer worker.Close()

	go func() {
		w := bufio.NewWriter(b)
		w.WriteString(`{"text":"hi","src_lang":"eng_Latn","tgt_lang":"fra_Latn"}` + "\n")
		w.WriteString("{not json\n")
		w.Flush()
	}()

	if r, ok := recvRequest(t, worker.Requests()); !ok || r.Text != "hi" {
		t.Fatalf("first request = %+v (ok=%v)", r, ok)
	}
	if _, ok := recvRequest(t, worker.Requests()); ok {
		t.Fatal("reading should stop after malformed input")
	}
	if err := worker.Err(); err == nil || !strings.Contains(err.Error(), "protocol") {
		t.Fatalf("expected read error, got %v", err)
	}
	b.Close()
}

func TestStreamConnStalledPeerDoesNotBlockEmit(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	worker := newStreamConn(a, 50*time.Millisecond)
	defer worker.Close()

	chunk := strings.Repeat("abcd efgh ", 2000)
	start := time.Now()
	for range 50 {
		if err := worker.Emit(Update(chunk)); err != nil && !errors.Is(err, ErrClosed) {
			t.Fatalf("Emit: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Emit blocked for %s on a peer that never reads", elapsed)
	}

	deadline := time.Now().Add(5 * time.Second)
	for worker.Err() == nil {
		if time.Now().After(deadline) {
			t.Fatal("stalled peer was never dropped")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.Contains(worker.Err().Error(), "write") {
		t.Fatalf("expected write error, got %v", worker.Err())
	}
	if err := worker.Emit(Ready()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Emit after drop = %v, want ErrClosed", err)
	}
}

func TestStreamConnCloseFlushesQueuedLines(t *testing.T) {
	a, b := net.Pipe()
	worker := NewStreamConn(a)
	lines := make(chan string, 4)
	go func() {
		sc := bufio.NewScanner(b)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	if err := worker.Emit(Complete("Bonjour").WithRequest("r1")); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := worker.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case line, ok := <-lines:
		if !ok || !strings.Contains(line, `"complete"`) {
			t.Fatalf("flushed line = %q (ok=%v)", line, ok)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued event was not flushed before close")
	}
}
