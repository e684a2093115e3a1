package retry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sorenlabs/archtagger/pkg/pipeline/core"
	"github.com/sorenlabs/archtagger/pkg/pipeline/retry"
)

func fastOptions() retry.Options {
	return retry.Options{
		MaxRetries:        3,
		RequestTimeout:    time.Second,
		BackoffInitial:    time.Millisecond,
		BackoffMax:        2 * time.Millisecond,
		BackoffJitterFrac: 0,
	}
}

func TestDo_RetriesTransientUpToCeiling(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	op := func(_ context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return "", &core.TransientError{Err: errors.New("try again")}
	}

	_, err := retry.Do(context.Background(), op, fastOptions())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 4 {
		t.Fatalf("expected 1 attempt + 3 retries = 4 calls, got %d", calls)
	}
}

func TestDo_EventualSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	op := func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &core.TransientError{Err: errors.New("not yet")}
		}
		return "ok", nil
	}

	got, err := retry.Do(context.Background(), op, fastOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Fatalf("got %q after %d calls", got, calls)
	}
}

func TestDo_PermanentFailsImmediately(t *testing.T) {
	t.Parallel()

	calls := 0
	op := func(_ context.Context) (string, error) {
		calls++
		return "", errors.New("malformed request")
	}

	_, err := retry.Do(context.Background(), op, fastOptions())
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("permanent error must not be retried, got %d calls", calls)
	}
}

func TestDo_RateLimitWaitsAdvertisedDelay(t *testing.T) {
	t.Parallel()

	const reset = 50 * time.Millisecond

	calls := 0
	op := func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &core.RateLimitError{RetryAfter: reset, Err: errors.New("too many requests")}
		}
		return "ok", nil
	}

	// MaxRetries 0 proves the rate-limit replay does not consume an attempt.
	opts := fastOptions()
	opts.MaxRetries = 0

	start := time.Now()
	got, err := retry.Do(context.Background(), op, opts)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("got %q", got)
	}
	if calls != 2 {
		t.Fatalf("expected exactly one replay, got %d calls", calls)
	}
	if elapsed < reset {
		t.Fatalf("replay happened after %s, want >= %s", elapsed, reset)
	}
}

func TestDo_PersistentRateLimitFailsAfterReplayCap(t *testing.T) {
	t.Parallel()

	calls := 0
	op := func(_ context.Context) (string, error) {
		calls++
		return "", &core.RateLimitError{RetryAfter: time.Millisecond, Err: errors.New("quota exhausted")}
	}

	opts := fastOptions()
	opts.MaxRetries = 0

	_, err := retry.Do(context.Background(), op, opts)

	var rle *core.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected the rate-limit error after the replay cap, got %v", err)
	}
	// One initial attempt plus one replay; the policy must end the call on
	// its own rather than spinning until the context gives out.
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDo_RateLimitDelayDefaults(t *testing.T) {
	t.Parallel()

	e := &core.RateLimitError{}
	if e.Delay() != core.DefaultRateLimitDelay {
		t.Fatalf("missing advertised delay should fall back to default, got %s", e.Delay())
	}
	e = &core.RateLimitError{RetryAfter: 5 * time.Second}
	if e.Delay() != 5*time.Second {
		t.Fatalf("got %s", e.Delay())
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op := func(_ context.Context) (string, error) {
		return "", &core.TransientError{Err: errors.New("never")}
	}
	_, err := retry.Do(ctx, op, fastOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   error
		want bool
	}{
		{name: "nil", in: nil, want: false},
		{name: "transient", in: &core.TransientError{Err: errors.New("x")}, want: true},
		{name: "deadline", in: context.DeadlineExceeded, want: true},
		{name: "plain", in: errors.New("x"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retry.IsTransient(tt.in); got != tt.want {
				t.Fatalf("IsTransient(%v)=%v want %v", tt.in, got, tt.want)
			}
		})
	}
}
