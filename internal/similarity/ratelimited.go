package similarity

import (
	"context"
	"fmt"

	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/worker"
)

// RateLimited holds each call until the backend's limiter allows it
type RateLimited struct {
	next    Provider
	limiter *worker.Limiter
	backend string
}

// NewRateLimited wraps next with a per-backend limiter
func NewRateLimited(next Provider, limiter *worker.Limiter, backend string) *RateLimited {
	return &RateLimited{next: next, limiter: limiter, backend: backend}
}

func (r *RateLimited) Similarity(ctx context.Context, a, b string) (float64, error) {
	if err := r.limiter.Wait(ctx, r.backend); err != nil {
		return 0, fmt.Errorf("%s rate limit: %w: %w", r.backend, model.ErrProviderUnavailable, err)
	}
	return r.next.Similarity(ctx, a, b)
}
