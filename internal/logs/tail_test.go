package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"babel/internal/logs"
	"babel/internal/testsupport"
)

func collect(t *testing.T, path string, opts logs.Options) []string {
	t.Helper()
	var lines []string
	if err := logs.Tail(context.Background(), path, opts, func(l string) { lines = append(lines, l) }); err != nil {
		t.Fatalf("Tail: %v", err)
	}
	return lines
}

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "babel.log")
	if err := os.WriteFile(path, []byte("a req=1\nb req=2\nc req=1\npartial"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	tests := []struct {
		name string
		opts logs.Options
		want []string
	}{
		{name: "last two", opts: logs.Options{Lines: 2}, want: []string{"b req=2", "c req=1"}},
		{name: "more than available", opts: logs.Options{Lines: 10}, want: []string{"a req=1", "b req=2", "c req=1"}},
		{name: "filtered", opts: logs.Options{Lines: 5, Match: "req=1"}, want: []string{"a req=1", "c req=1"}},
		{name: "none", opts: logs.Options{}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(t, path, tt.opts)
			if len(got) != len(tt.want) {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("line %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTailMissingFile(t *testing.T) {
	if got := collect(t, filepath.Join(t.TempDir(), "absent.log"), logs.Options{Lines: 5}); len(got) != 0 {
		t.Fatalf("expected no lines, got %#v", got)
	}
}

func TestTailFollowPicksUpAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "babel.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var lines []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Tail(ctx, path, logs.Options{Lines: 1, Follow: true, Match: "keep", Poll: 10 * time.Millisecond}, func(l string) {
			mu.Lock()
			lines = append(lines, l)
			mu.Unlock()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("drop me\nkeep later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	testsupport.WaitFor(t, 5*time.Second, "appended line", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(lines) == 1 && lines[0] == "keep later"
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Tail returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop on cancel")
	}
}
