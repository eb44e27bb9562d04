package similarity

import (
	"fmt"
	"strings"

	"github.com/ppiankov/grievance/internal/cache"
	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/worker"
)

// NewProvider builds the configured semantic similarity provider.
// "lexical" (or empty) needs no backend; "openai" and "ollama" embed through
// the cache and the per-backend limiter.
func NewProvider(cfg model.SimilarityConfig, proxy model.ProxyConfig, c cache.Cache, limiter *worker.Limiter) (Provider, error) {
	if limiter == nil {
		limiter = worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}

	switch name := strings.ToLower(cfg.Provider); name {
	case "", "lexical", "tfidf":
		return NewLexical(), nil

	case "openai":
		embedder, err := NewOpenAIEmbedder(cfg, proxy)
		if err != nil {
			return nil, err
		}
		return NewRateLimited(NewEmbeddingProvider(embedder, c), limiter, name), nil

	case "ollama":
		return NewRateLimited(NewEmbeddingProvider(NewOllamaEmbedder(cfg, proxy), c), limiter, name), nil

	default:
		return nil, fmt.Errorf("unknown similarity provider: %s (supported: lexical, openai, ollama)", cfg.Provider)
	}
}
