package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/varscore/internal/model"
	"github.com/ppiankov/varscore/internal/worker"
)

// recordSleeps replaces the retry sleep with a recorder for the test
func recordSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	orig := retrySleepFunc
	retrySleepFunc = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	t.Cleanup(func() { retrySleepFunc = orig })
	return &delays
}

func getBuild(url string) buildFunc {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestRequester_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "varscore-test" {
			t.Errorf("unexpected user agent %q", ua)
		}
		_, _ = fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	r := newRequester("test", Options{MaxRetries: 3, UserAgent: "varscore-test"})
	body, attempts, failure := r.do(context.Background(), getBuild(server.URL))
	if failure != nil {
		t.Fatalf("expected success, got %v", failure)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body: %s", body)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRequester_TransientThenSuccess(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	delays := recordSleeps(t)

	r := newRequester("test", Options{MaxRetries: 3, BaseDelay: 500 * time.Millisecond})
	_, attempts, failure := r.do(context.Background(), getBuild(server.URL))
	if failure != nil {
		t.Fatalf("expected success after retries, got %v", failure)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}

	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, *delays)
	}
	for i := range want {
		if (*delays)[i] != want[i] {
			t.Errorf("delay %d: got %v, want %v", i, (*delays)[i], want[i])
		}
	}
}

func TestRequester_ExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	delays := recordSleeps(t)

	r := newRequester("test", Options{MaxRetries: 3, BaseDelay: 100 * time.Millisecond})
	_, attempts, failure := r.do(context.Background(), getBuild(server.URL))
	if failure == nil {
		t.Fatal("expected failure")
	}
	if failure.Kind != model.FailureTransport {
		t.Errorf("expected transport failure, got %s", failure.Kind)
	}
	if failure.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", failure.StatusCode)
	}
	if attempts != 4 || hits.Load() != 4 || failure.Attempts != 4 {
		t.Errorf("expected 4 attempts, got attempts=%d hits=%d failure.Attempts=%d", attempts, hits.Load(), failure.Attempts)
	}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if len(*delays) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, *delays)
	}
	for i := range want {
		if (*delays)[i] != want[i] {
			t.Errorf("delay %d: got %v, want %v", i, (*delays)[i], want[i])
		}
	}
}

func TestRequester_NotFoundNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	recordSleeps(t)

	r := newRequester("test", Options{MaxRetries: 3})
	_, attempts, failure := r.do(context.Background(), getBuild(server.URL))
	if failure == nil || failure.Kind != model.FailureNotFound {
		t.Fatalf("expected not found, got %v", failure)
	}
	if attempts != 1 || hits.Load() != 1 {
		t.Errorf("404 should not be retried, got %d attempts", hits.Load())
	}
}

func TestRequester_TooManyRequests(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	recordSleeps(t)

	r := newRequester("test", Options{MaxRetries: 2})
	_, _, failure := r.do(context.Background(), getBuild(server.URL))
	if failure == nil || failure.Kind != model.FailureRateLimited {
		t.Fatalf("expected rate limited, got %v", failure)
	}
	if hits.Load() != 3 {
		t.Errorf("429 should be retried, got %d attempts", hits.Load())
	}
}

func TestRequester_ZeroRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	recordSleeps(t)

	r := newRequester("test", Options{MaxRetries: 0})
	_, attempts, failure := r.do(context.Background(), getBuild(server.URL))
	if failure == nil {
		t.Fatal("expected failure")
	}
	if attempts != 1 || hits.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", hits.Load())
	}
}

func TestRequester_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	recordSleeps(t)

	r := newRequester("test", Options{MaxRetries: 1})
	_, attempts, failure := r.do(context.Background(), getBuild(url))
	if failure == nil || failure.Kind != model.FailureTransport {
		t.Fatalf("expected transport failure, got %v", failure)
	}
	if attempts != 2 {
		t.Errorf("transport errors should be retried, got %d attempts", attempts)
	}
}

func TestRequester_AttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	recordSleeps(t)

	r := newRequester("test", Options{MaxRetries: 0, RequestTimeout: 20 * time.Millisecond})
	_, _, failure := r.do(context.Background(), getBuild(server.URL))
	if failure == nil || failure.Kind != model.FailureTimeout {
		t.Fatalf("expected timeout, got %v", failure)
	}
}

func TestRequester_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRequester("test", Options{MaxRetries: 3})
	_, _, failure := r.do(ctx, getBuild(server.URL))
	if failure == nil || failure.Kind != model.FailureTimeout {
		t.Fatalf("expected timeout on cancelled context, got %v", failure)
	}
}

type ceilingLimiter struct{}

func (ceilingLimiter) Acquire(context.Context, string) error {
	return fmt.Errorf("test: %w", worker.ErrWaitTooLong)
}

func TestRequester_LimiterCeiling(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	r := newRequester("test", Options{MaxRetries: 3, Limiter: ceilingLimiter{}})
	_, attempts, failure := r.do(context.Background(), getBuild(server.URL))
	if failure == nil || failure.Kind != model.FailureRateLimited {
		t.Fatalf("expected rate limited, got %v", failure)
	}
	if attempts != 1 || hits.Load() != 0 {
		t.Errorf("ceiling failure must not reach the server or retry: attempts=%d hits=%d", attempts, hits.Load())
	}
}

func TestRequester_UsesLimiterPerAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	recordSleeps(t)

	counter := &countingLimiter{}
	r := newRequester("test", Options{MaxRetries: 2, Limiter: counter})
	_, _, _ = r.do(context.Background(), getBuild(server.URL))
	if counter.n.Load() != 3 {
		t.Errorf("expected one grant per attempt (3), got %d", counter.n.Load())
	}
}

type countingLimiter struct {
	n atomic.Int32
}

func (c *countingLimiter) Acquire(context.Context, string) error {
	c.n.Add(1)
	return nil
}

func TestRetryState_String(t *testing.T) {
	cases := map[retryState]string{
		statePending:           "pending",
		stateRetrying:          "retrying",
		stateSucceeded:         "succeeded",
		stateFailedPermanently: "failed_permanently",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("%d: got %q, want %q", s, s.String(), want)
		}
	}
}
