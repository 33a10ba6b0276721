package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func writeCompletion(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"content": content},
			},
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func writeEventStream(w http.ResponseWriter, deltas ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	fmt.Fprint(w, ": keep-alive\n\n")
	for _, delta := range deltas {
		chunk, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"delta": map[string]any{"content": delta}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		if flusher != nil {
			flusher.Flush()
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		writeCompletion(t, w, "OK")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	err := client.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected health check to fail")
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d (%v)", StatusCode(err), err)
	}
}

func TestClientHealthCheckRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestClientStreamDeliversDeltasInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Errorf("expected stream=true")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		writeEventStream(w, "J'adore", " promener", " mon chien.")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	var deltas []string
	text, err := client.Stream(context.Background(), "translate", "I love walking my dog.", func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	if text != "J'adore promener mon chien." {
		t.Fatalf("unexpected text %q", text)
	}
	if strings.Join(deltas, "|") != "J'adore| promener| mon chien." {
		t.Fatalf("unexpected deltas %q", deltas)
	}
}

func TestClientStreamToleratesPlainCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, "Hola")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	var deltas []string
	text, err := client.Stream(context.Background(), "", "Hello", func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	if text != "Hola" || len(deltas) != 1 {
		t.Fatalf("unexpected result %q %v", text, deltas)
	}
}

func TestClientStreamAPIErrorChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"error":{"message":"model overloaded"}}`+"\n\n")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithRetryMaxAttempts(1))
	_, err := client.Stream(context.Background(), "", "Hello", nil)
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		writeEventStream(w, "Bonjour")
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	text, err := client.Stream(context.Background(), "", "Hello", nil)
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	if text != "Bonjour" {
		t.Fatalf("unexpected text %q", text)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientRetriesOnEmptyStreamThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			writeEventStream(w)
			return
		}
		writeEventStream(w, "Hallo")
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	text, err := client.Stream(context.Background(), "", "Hello", nil)
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	if text != "Hallo" || calls != 3 {
		t.Fatalf("unexpected result %q after %d calls", text, calls)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	if _, err := client.Stream(context.Background(), "", "Hello", nil); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
		ok    bool
	}{
		{"", 0, false},
		{"3", 3 * time.Second, true},
		{"-1", 0, false},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseRetryAfter(tt.value)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseRetryAfter(%q) = %v, %v; want %v, %v", tt.value, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBackoffDelays(t *testing.T) {
	b := backoff{attempts: 5, first: time.Second, ceiling: 5 * time.Second}
	tests := []struct {
		n    int
		want time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{9, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := b.nth(tt.n); got != tt.want {
			t.Errorf("nth(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
	if got := b.clamp(time.Minute); got != 5*time.Second {
		t.Errorf("clamp(1m) = %v, want ceiling", got)
	}
}

func TestBackoffGivesUpAfterLimit(t *testing.T) {
	b := backoff{attempts: 3, sleep: func(time.Duration) {}}
	var calls int
	err := b.run(context.Background(), "op", func() (bool, error) {
		calls++
		return false, &httpStatusError{StatusCode: http.StatusBadGateway}
	})
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if err == nil || !strings.Contains(err.Error(), "failed after 3 attempts") || StatusCode(err) != http.StatusBadGateway {
		t.Fatalf("unexpected error: %v", err)
	}
}
