// Package ratelimit holds the two throttles used by a run: a fixed pause
// between embedding batches and named token buckets for LLM calls.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ragbench/internal/config"
)

// Window is a half-open index range [Start, End).
type Window struct {
	Start, End int
}

// Batches splits n items into consecutive windows of at most size items.
func Batches(n, size int) []Window {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = n
	}
	out := make([]Window, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		out = append(out, Window{Start: start, End: min(start+size, n)})
	}
	return out
}

// Sleep pauses for d unless ctx is cancelled first. Non-positive d returns
// immediately without logging.
func Sleep(ctx context.Context, d time.Duration, logger *zap.Logger) error {
	if d <= 0 {
		return nil
	}
	logger.Sugar().Infof("Sleeping for %g seconds due to rate limiter.", d.Seconds())
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Limiter is a named token bucket.
type Limiter struct {
	name       string
	bucket     *rate.Limiter
	checkEvery time.Duration
}

// Name returns the name the limiter was registered under.
func (l *Limiter) Name() string { return l.name }

// Wait blocks until a token is available. With a check interval configured
// the bucket is polled at that interval, otherwise the wait is exact.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.checkEvery <= 0 {
		return l.bucket.Wait(ctx)
	}
	t := time.NewTicker(l.checkEvery)
	defer t.Stop()
	for !l.bucket.Allow() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// Set is a process-wide set of limiters keyed by name.
type Set struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
}

func NewSet() *Set {
	return &Set{limiters: make(map[string]*Limiter)}
}

// Get returns the limiter registered under name, creating it from cfg the
// first time. Later calls ignore cfg.
func (s *Set) Get(name string, cfg config.RateLimiterConfig) *Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.limiters[name]; ok {
		return l
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.MaxBucketSize
	if burst <= 0 {
		burst = 1
	}
	l := &Limiter{
		name:       name,
		bucket:     rate.NewLimiter(limit, burst),
		checkEvery: time.Duration(math.Max(cfg.CheckEveryNSeconds, 0) * float64(time.Second)),
	}
	s.limiters[name] = l
	return l
}

// Len returns the number of registered limiters.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
