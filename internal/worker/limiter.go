package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ppiankov/varscore/internal/metrics"
)

// ErrWaitTooLong is returned when a grant would be further away than the
// limiter's wait ceiling
var ErrWaitTooLong = errors.New("rate limit wait exceeds ceiling")

// Limiter enforces a minimum interval between granted requests per source.
// Each source owns an independent rate.Limiter with burst 1, so a grant is
// always at least one interval after the previous grant for that source and
// slow sources never delay fast ones.
type Limiter struct {
	limiters        map[string]*rate.Limiter
	mu              sync.RWMutex
	defaultInterval time.Duration
	maxWait         time.Duration
}

// NewLimiter creates a limiter. maxWait <= 0 disables the wait ceiling.
func NewLimiter(minInterval, maxWait time.Duration) *Limiter {
	if minInterval < 0 {
		minInterval = 0
	}

	return &Limiter{
		limiters:        make(map[string]*rate.Limiter),
		defaultInterval: minInterval,
		maxWait:         maxWait,
	}
}

// Acquire blocks until the source may issue its next request. It fails with
// ErrWaitTooLong, without consuming a grant, when the wait would exceed the
// ceiling, and with ctx.Err() when ctx ends first.
func (l *Limiter) Acquire(ctx context.Context, source string) error {
	limiter := l.getLimiter(source)

	r := limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("%s: %w", source, ErrWaitTooLong)
	}

	delay := r.Delay()
	if l.maxWait > 0 && delay > l.maxWait {
		r.Cancel()
		return fmt.Errorf("%s: wait %v: %w", source, delay, ErrWaitTooLong)
	}

	metrics.LimiterWaitSeconds.WithLabelValues(source).Observe(delay.Seconds())
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// Allow grants immediately if the source's interval has elapsed
func (l *Limiter) Allow(source string) bool {
	return l.getLimiter(source).Allow()
}

// getLimiter returns the rate limiter for a source
func (l *Limiter) getLimiter(source string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[source]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[source]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(intervalLimit(l.defaultInterval), 1)
	l.limiters[source] = limiter

	return limiter
}

// SetSourceInterval sets a custom minimum interval for a specific source
func (l *Limiter) SetSourceInterval(source string, interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if interval < 0 {
		interval = l.defaultInterval
	}

	l.limiters[source] = rate.NewLimiter(intervalLimit(interval), 1)
}

func intervalLimit(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}
