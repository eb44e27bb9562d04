package slotfill

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/worker"
)

// NewFiller creates the configured slot filler. An empty provider returns
// nil: intake then relies on the local normalizer alone.
func NewFiller(cfg model.SlotFillConfig, proxy model.ProxyConfig, limiter *worker.Limiter) (Filler, error) {
	var (
		f   Filler
		err error
	)

	switch strings.ToLower(cfg.Provider) {
	case "":
		return nil, nil

	case "openai":
		f, err = NewOpenAIFiller(cfg, proxy)

	case "anthropic", "claude":
		f, err = NewAnthropicFiller(cfg, proxy)

	case "ollama":
		f = NewOllamaFiller(cfg, proxy)

	default:
		return nil, fmt.Errorf("unknown slot-fill provider: %s (supported: openai, anthropic, ollama)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if limiter != nil {
		if cfg.RequestsPerSecond > 0 {
			limiter.SetRate(limiterKey(f), cfg.RequestsPerSecond, cfg.Burst)
		}
		f = &rateLimited{next: f, limiter: limiter}
	}
	return f, nil
}

type rateLimited struct {
	next    Filler
	limiter *worker.Limiter
}

func (r *rateLimited) Name() string {
	return r.next.Name()
}

func (r *rateLimited) Fill(ctx context.Context, transcript string) (*model.Slots, error) {
	if err := r.limiter.Wait(ctx, limiterKey(r.next)); err != nil {
		return nil, unavailable(r.next.Name(), err)
	}
	return r.next.Fill(ctx, transcript)
}

// slot fillers share the similarity limiter under their own keys
func limiterKey(f Filler) string {
	return "slotfill/" + f.Name()
}
