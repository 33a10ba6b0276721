package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// backoff retries transient failures with doubling delays. Server-provided
// Retry-After hints win over the computed delay but never exceed ceiling.
type backoff struct {
	attempts int
	first    time.Duration
	ceiling  time.Duration
	sleep    func(time.Duration)
}

func defaultBackoff() backoff {
	return backoff{attempts: 3, first: time.Second, ceiling: 10 * time.Second}
}

// run calls attempt until it succeeds or fails permanently. attempt reports
// whether it already produced output; such failures are returned as is.
func (b backoff) run(ctx context.Context, op string, attempt func() (bool, error)) error {
	limit := max(b.attempts, 1)
	for n := 1; ; n++ {
		started, err := attempt()
		if err == nil || started {
			return err
		}
		if n >= limit {
			if n == 1 {
				return err
			}
			return fmt.Errorf("%s: failed after %d attempts: %w", op, n, err)
		}
		delay, ok := b.delayFor(ctx, err, n)
		if !ok {
			return err
		}
		if werr := b.wait(ctx, delay); werr != nil {
			return werr
		}
	}
}

func (b backoff) delayFor(ctx context.Context, err error, n int) (time.Duration, bool) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var empty *emptyContentError
	if errors.As(err, &empty) {
		return b.nth(n), true
	}

	var status *httpStatusError
	if errors.As(err, &status) {
		code := status.StatusCode
		if code != http.StatusRequestTimeout && code != http.StatusTooManyRequests && code < http.StatusInternalServerError {
			return 0, false
		}
		if status.RetryAfter > 0 {
			return b.clamp(status.RetryAfter), true
		}
		return b.nth(n), true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return b.nth(n), true
	}
	return 0, false
}

// nth returns the delay after the n-th failed attempt: first, 2*first, 4*first...
func (b backoff) nth(n int) time.Duration {
	if b.first <= 0 {
		return 0
	}
	d := b.first
	for i := 1; i < n && (b.ceiling <= 0 || d < b.ceiling); i++ {
		d *= 2
	}
	return b.clamp(d)
}

func (b backoff) clamp(d time.Duration) time.Duration {
	if b.ceiling > 0 && d > b.ceiling {
		return b.ceiling
	}
	return max(d, 0)
}

func (b backoff) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if b.sleep != nil {
		b.sleep(d)
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// parseRetryAfter understands both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d >= 0 {
			return d, true
		}
	}
	return 0, false
}
