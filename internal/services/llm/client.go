package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	defaultTimeout  = 60 * time.Second
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client streams chat completions from an OpenAI-compatible endpoint.
type Client struct {
	cfg   Config
	http  *http.Client
	retry backoff
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. A nil client is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetryMaxAttempts caps how many times one call is attempted.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.attempts = attempts }
}

// WithRetryBackoff sets the first retry delay and the ceiling it doubles up to.
func WithRetryBackoff(first, ceiling time.Duration) Option {
	return func(c *Client) {
		c.retry.first = first
		c.retry.ceiling = ceiling
	}
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleep = sleep }
}

// NewClient constructs a client. An empty BaseURL selects OpenRouter.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultEndpoint
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	c := &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: timeout},
		retry: defaultBackoff(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.cfg.Model }

// HealthCheck issues a tiny non-streaming completion to prove the key and
// model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("llm health: api key required")
	}
	payload := chatCompletionRequest{
		Model:     c.cfg.Model,
		Messages:  []chatMessage{{Role: "user", Content: "Reply with the single word OK."}},
		MaxTokens: 4,
	}
	return c.retry.run(ctx, "llm health", func() (bool, error) {
		resp, err := c.post(ctx, payload)
		if err != nil {
			return false, err
		}
		defer resp.Body.Close()
		var got string
		if err := readSingleCompletion(resp.Body, func(s string) { got = s }); err != nil {
			return false, err
		}
		if strings.TrimSpace(got) == "" {
			return false, &emptyContentError{Op: "llm health"}
		}
		return false, nil
	})
}

// Stream sends a streaming chat completion and calls onDelta for every
// content fragment in arrival order. It returns the concatenated content.
// Once a fragment has been delivered the call is never retried.
func (c *Client) Stream(ctx context.Context, systemPrompt, userPrompt string, onDelta func(string)) (string, error) {
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return "", errors.New("llm stream: user prompt required")
	}
	if c.cfg.APIKey == "" {
		return "", errors.New("llm stream: api key required")
	}
	payload := chatCompletionRequest{Model: c.cfg.Model, Stream: true}
	if sp := strings.TrimSpace(systemPrompt); sp != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: sp})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: userPrompt})

	var text strings.Builder
	err := c.retry.run(ctx, "llm stream", func() (bool, error) {
		resp, err := c.post(ctx, payload)
		if err != nil {
			return false, err
		}
		defer resp.Body.Close()

		deliver := func(delta string) {
			if delta == "" {
				return
			}
			text.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
		read := readSingleCompletion
		if isEventStream(resp.Header.Get("Content-Type")) {
			read = readEventStream
		}
		err = read(resp.Body, deliver)
		started := text.Len() > 0
		if err == nil && !started {
			err = &emptyContentError{Op: "llm stream"}
		}
		return started, err
	})
	return text.String(), err
}

func (c *Client) post(ctx context.Context, payload chatCompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if payload.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	if resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	wait, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
	return nil, &httpStatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
		RetryAfter: wait,
	}
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status from a failed request, or 0.
func StatusCode(err error) int {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

type emptyContentError struct {
	Op string
}

func (e *emptyContentError) Error() string {
	return e.Op + ": empty content"
}
