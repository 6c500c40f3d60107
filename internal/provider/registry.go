// File: internal/provider/registry.go
// Description: Builds the configured adapters in fallback order and wraps
// each with its client-side rate limiter.
package provider

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
	"github.com/buildmedic/buildmedic-cli/internal/config"
)

// Registry holds the adapters for one invocation, ordered by priority.
type Registry struct {
	adapters []Adapter
}

// NewRegistry constructs an adapter per configured provider spec. The config
// is assumed validated; an unknown provider kind here is a programming error
// and is reported as one.
func NewRegistry(cfg *config.Config, logger *zap.Logger) (*Registry, error) {
	specs := cfg.OrderedProviders()
	adapters := make([]Adapter, 0, len(specs))
	for _, spec := range specs {
		adapter, err := newAdapter(spec, logger)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", spec.Name, err)
		}
		if spec.RateLimit > 0 {
			adapter = &limitedAdapter{
				Adapter: adapter,
				limiter: rate.NewLimiter(rate.Limit(spec.RateLimit), 1),
			}
		}
		adapters = append(adapters, adapter)
	}
	return &Registry{adapters: adapters}, nil
}

// Adapters returns the adapters in fallback order. The slice is shared; do
// not mutate it.
func (r *Registry) Adapters() []Adapter {
	return r.adapters
}

func newAdapter(spec config.ProviderSpec, logger *zap.Logger) (Adapter, error) {
	client := &http.Client{Timeout: spec.Timeout}
	log := logger.Named("provider").With(zap.String("provider", spec.Name))

	switch spec.Provider {
	case config.ProviderOpenAI:
		return &openAIAdapter{
			name:          spec.Name,
			model:         spec.Model,
			endpoint:      orDefault(spec.Endpoint, defaultOpenAIEndpoint),
			credentialEnv: spec.CredentialEnv,
			maxTokens:     spec.MaxTokens,
			client:        client,
			logger:        log,
		}, nil
	case config.ProviderAnthropic:
		return &anthropicAdapter{
			name:          spec.Name,
			model:         spec.Model,
			endpoint:      orDefault(spec.Endpoint, defaultAnthropicEndpoint),
			credentialEnv: spec.CredentialEnv,
			maxTokens:     spec.MaxTokens,
			client:        client,
			logger:        log,
		}, nil
	case config.ProviderGemini:
		return &geminiAdapter{
			name:          spec.Name,
			model:         spec.Model,
			endpoint:      orDefault(spec.Endpoint, defaultGeminiEndpoint),
			credentialEnv: spec.CredentialEnv,
			maxTokens:     spec.MaxTokens,
			client:        client,
			logger:        log,
		}, nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", spec.Provider)
	}
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// limitedAdapter gates Analyze behind a token bucket. Waiting respects the
// caller's context, so the global deadline still cuts a stuck wait short.
type limitedAdapter struct {
	Adapter
	limiter *rate.Limiter
}

func (l *limitedAdapter) Analyze(ctx context.Context, prompt string) (*schemas.AnalysisResult, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, Classify(l.Name(), err)
	}
	return l.Adapter.Analyze(ctx, prompt)
}
