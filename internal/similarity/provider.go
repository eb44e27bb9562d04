package similarity

import (
	"context"
	"math"
)

// Provider scores the semantic similarity of two texts in [0, 1]
type Provider interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Func adapts a plain function to Provider
type Func func(ctx context.Context, a, b string) (float64, error)

// Similarity calls f
func (f Func) Similarity(ctx context.Context, a, b string) (float64, error) {
	return f(ctx, a, b)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
