package similarity

import (
	"context"
	"fmt"
	"math"

	"github.com/ppiankov/grievance/internal/cache"
	"github.com/ppiankov/grievance/internal/model"
)

// Embedder turns texts into dense vectors
type Embedder interface {
	// Name identifies the backend and model, e.g. "openai/text-embedding-3-small"
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingProvider scores cosine similarity of embeddings, caching vectors by text
type EmbeddingProvider struct {
	embedder Embedder
	cache    cache.Cache
}

// NewEmbeddingProvider wraps an embedder; a nil cache disables caching
func NewEmbeddingProvider(embedder Embedder, c cache.Cache) *EmbeddingProvider {
	return &EmbeddingProvider{
		embedder: embedder,
		cache:    c,
	}
}

// Similarity embeds both texts and returns their cosine, clamped to [0, 1]
func (p *EmbeddingProvider) Similarity(ctx context.Context, a, b string) (float64, error) {
	vecs, err := p.Vectors(ctx, []string{a, b})
	if err != nil {
		return 0, err
	}
	return clamp01(Cosine(vecs[0], vecs[1])), nil
}

// Vectors returns one embedding per text, calling the backend only for cache misses
func (p *EmbeddingProvider) Vectors(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	pending := make(map[string][]int)
	var misses []string

	for i, text := range texts {
		if v, ok := p.lookup(text); ok {
			out[i] = v
			continue
		}
		if _, queued := pending[text]; !queued {
			misses = append(misses, text)
		}
		pending[text] = append(pending[text], i)
	}

	if len(misses) == 0 {
		return out, nil
	}

	vecs, err := p.embedder.Embed(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", p.embedder.Name(), model.ErrProviderUnavailable, err)
	}
	if len(vecs) != len(misses) {
		return nil, fmt.Errorf("%s: %w: got %d embeddings for %d texts",
			p.embedder.Name(), model.ErrProviderUnavailable, len(vecs), len(misses))
	}

	for i, text := range misses {
		p.store(text, vecs[i])
		for _, idx := range pending[text] {
			out[idx] = vecs[i]
		}
	}
	return out, nil
}

func (p *EmbeddingProvider) lookup(text string) ([]float32, bool) {
	if p.cache == nil {
		return nil, false
	}
	data, ok := p.cache.Get(cache.Key(p.embedder.Name(), text))
	if !ok {
		return nil, false
	}
	return cache.DecodeVector(data)
}

func (p *EmbeddingProvider) store(text string, v []float32) {
	if p.cache == nil || len(v) == 0 {
		return
	}
	_ = p.cache.Set(cache.Key(p.embedder.Name(), text), cache.EncodeVector(v), 0)
}

// Cosine returns the cosine of two vectors; mismatched or zero vectors give 0
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
