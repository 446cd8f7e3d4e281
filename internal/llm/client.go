// Package llm provides vision-capable model clients behind the
// schemas.LLMClient interface. Provider selection and request pacing are
// configuration driven.
package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kmalloy/sitejudge/api/schemas"
	"github.com/kmalloy/sitejudge/internal/config"
)

// NewClient builds the configured provider client wrapped with request
// pacing so concurrent recorder sessions share one request budget.
func NewClient(ctx context.Context, cfg config.LLMRouterConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	var (
		inner schemas.LLMClient
		err   error
	)
	switch cfg.Provider {
	case config.ProviderBedrock:
		inner, err = newBedrockClient(ctx, cfg, logger)
	case config.ProviderGemini:
		inner, err = newGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		return inner, nil
	}
	return &pacedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rpm/60.0), 1),
	}, nil
}

// pacedClient throttles Generate calls with a shared token bucket.
type pacedClient struct {
	inner   schemas.LLMClient
	limiter *rate.Limiter
}

func (p *pacedClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait aborted: %w", err)
	}
	return p.inner.Generate(ctx, req)
}

func (p *pacedClient) Close() error {
	return p.inner.Close()
}

// modelFor picks the model ID for a request tier.
func modelFor(cfg config.LLMRouterConfig, tier schemas.ModelTier) string {
	if tier == schemas.TierFast && cfg.FastModel != "" {
		return cfg.FastModel
	}
	return cfg.PowerfulModel
}

// temperatureFor resolves the request temperature, falling back to the
// configured default.
func temperatureFor(cfg config.LLMRouterConfig, opts schemas.GenerationOptions) float64 {
	if opts.Temperature > 0 {
		return opts.Temperature
	}
	return cfg.Temperature
}

// maxTokensFor resolves the completion budget for a request.
func maxTokensFor(cfg config.LLMRouterConfig, opts schemas.GenerationOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return 4096
}
