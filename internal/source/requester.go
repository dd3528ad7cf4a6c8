package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/ppiankov/varscore/internal/metrics"
	"github.com/ppiankov/varscore/internal/model"
	"github.com/ppiankov/varscore/internal/worker"
)

// maxBodyBytes caps how much of a response body is read
const maxBodyBytes = 8 << 20

// retrySleepFunc waits between attempts; tests replace it
var retrySleepFunc = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryState is the position of a request in its retry lifecycle
type retryState int

const (
	statePending retryState = iota
	stateRetrying
	stateSucceeded
	stateFailedPermanently
)

func (s retryState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateRetrying:
		return "retrying"
	case stateSucceeded:
		return "succeeded"
	case stateFailedPermanently:
		return "failed_permanently"
	default:
		return "unknown"
	}
}

// buildFunc creates the request of one attempt
type buildFunc func(ctx context.Context) (*http.Request, error)

// requester issues rate-limited HTTP requests with bounded retries
type requester struct {
	source     string
	client     *http.Client
	limiter    Acquirer
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
	userAgent  string
	log        *zap.Logger
}

func newRequester(source string, opts Options) *requester {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		}
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = noLimit{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &requester{
		source:     source,
		client:     client,
		limiter:    limiter,
		maxRetries: maxRetries,
		baseDelay:  opts.BaseDelay,
		timeout:    opts.RequestTimeout,
		userAgent:  opts.UserAgent,
		log:        log,
	}
}

// attemptOutcome is the classified result of a single HTTP attempt
type attemptOutcome struct {
	body      []byte
	failure   *model.Failure
	retryable bool
}

// do runs the retry state machine:
// Pending -> Retrying(n) -> Succeeded | FailedPermanently.
// It makes at most 1+maxRetries attempts, waiting baseDelay*2^(n-1) before
// retry n. It returns the body on success or the final failure, plus the
// number of attempts made.
func (r *requester) do(ctx context.Context, build buildFunc) ([]byte, int, *model.Failure) {
	schedule := r.newSchedule()
	state := statePending
	attempts := 0

	for {
		if state == stateRetrying {
			delay := schedule.NextBackOff()
			if err := retrySleepFunc(ctx, delay); err != nil {
				return nil, attempts, &model.Failure{
					Kind:     model.FailureTimeout,
					Message:  fmt.Sprintf("cancelled while waiting to retry: %v", err),
					Attempts: attempts,
				}
			}
		}

		attempts++
		out := r.attempt(ctx, build)

		var next retryState
		switch {
		case out.failure == nil:
			next = stateSucceeded
		case out.retryable && attempts <= r.maxRetries && ctx.Err() == nil:
			next = stateRetrying
		default:
			next = stateFailedPermanently
		}

		r.log.Debug("Source attempt",
			zap.String("source", r.source),
			zap.Int("attempt", attempts),
			zap.Stringer("from", state),
			zap.Stringer("to", next),
		)
		state = next

		switch state {
		case stateSucceeded:
			return out.body, attempts, nil
		case stateFailedPermanently:
			out.failure.Attempts = attempts
			return nil, attempts, out.failure
		}
	}
}

// newSchedule returns a jitter-free doubling schedule starting at baseDelay
func (r *requester) newSchedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.baseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = r.baseDelay << uint(r.maxRetries)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// attempt performs one rate-limited request and classifies its outcome
func (r *requester) attempt(ctx context.Context, build buildFunc) attemptOutcome {
	if err := r.limiter.Acquire(ctx, r.source); err != nil {
		if errors.Is(err, worker.ErrWaitTooLong) {
			return attemptOutcome{failure: &model.Failure{Kind: model.FailureRateLimited, Message: err.Error()}}
		}
		return attemptOutcome{failure: &model.Failure{Kind: model.FailureTimeout, Message: err.Error()}}
	}

	attemptCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := build(attemptCtx)
	if err != nil {
		return attemptOutcome{failure: &model.Failure{Kind: model.FailureTransport, Message: fmt.Sprintf("create request: %v", err)}}
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	metrics.SourceRequestDuration.WithLabelValues(r.source).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceAttemptsTotal.WithLabelValues(r.source, "error").Inc()
		if ctx.Err() != nil {
			return attemptOutcome{failure: &model.Failure{Kind: model.FailureTimeout, Message: ctx.Err().Error()}}
		}
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return attemptOutcome{
				failure:   &model.Failure{Kind: model.FailureTimeout, Message: fmt.Sprintf("request exceeded %v", r.timeout)},
				retryable: true,
			}
		}
		return attemptOutcome{
			failure:   &model.Failure{Kind: model.FailureTransport, Message: err.Error()},
			retryable: true,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.SourceAttemptsTotal.WithLabelValues(r.source, metrics.StatusClass(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return attemptOutcome{failure: &model.Failure{
			Kind:       model.FailureNotFound,
			Message:    "no record",
			StatusCode: resp.StatusCode,
		}}
	case resp.StatusCode == http.StatusTooManyRequests:
		return attemptOutcome{
			failure: &model.Failure{
				Kind:       model.FailureRateLimited,
				Message:    "remote rate limit",
				StatusCode: resp.StatusCode,
			},
			retryable: true,
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return attemptOutcome{
			failure: &model.Failure{
				Kind:       model.FailureTransport,
				Message:    fmt.Sprintf("unexpected status: %s", resp.Status),
				StatusCode: resp.StatusCode,
			},
			retryable: true,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return attemptOutcome{
			failure:   &model.Failure{Kind: model.FailureTransport, Message: fmt.Sprintf("read body: %v", err)},
			retryable: true,
		}
	}
	return attemptOutcome{body: body}
}
