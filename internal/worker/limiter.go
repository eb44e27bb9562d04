package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter rate-limits calls per backend (e.g. "openai", "ollama")
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a limiter; a non-positive rate means unlimited
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait blocks until a call to the named backend is allowed
func (l *Limiter) Wait(ctx context.Context, backend string) error {
	return l.getLimiter(backend).Wait(ctx)
}

// Allow reports whether a call may proceed now without waiting
func (l *Limiter) Allow(backend string) bool {
	return l.getLimiter(backend).Allow()
}

func (l *Limiter) getLimiter(backend string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[backend]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists := l.limiters[backend]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[backend] = limiter
	return limiter
}

// SetRate overrides the limit for one backend
func (l *Limiter) SetRate(backend string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[backend] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}
