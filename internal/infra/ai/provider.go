// Package ai wires the configured completion provider.
package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/bryanwahyu/automaton-review/internal/config"
	domain "github.com/bryanwahyu/automaton-review/internal/domain/review"
	"github.com/bryanwahyu/automaton-review/internal/infra/ai/gemini"
	"github.com/bryanwahyu/automaton-review/internal/infra/ai/openai"
)

// NewClient builds the completion client named by cfg.AI.Provider. A missing
// or unusable credential does not stop start-up: the returned client fails
// every call with ErrUpstreamAuth instead.
func NewClient(ctx context.Context, cfg *config.Config) domain.CompletionClient {
	if cfg.AI.APIKey == "" {
		log.Printf("ai provider=%s warning=no api key configured", cfg.AI.Provider)
		return Unconfigured{Provider: cfg.AI.Provider}
	}
	switch cfg.AI.Provider {
	case config.ProviderOpenAI:
		c := openai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model)
		c.MaxTokens = cfg.AI.MaxOutputTokens
		c.ForceJSON = cfg.AI.ForceJSON
		return c
	default:
		c, err := gemini.NewClient(ctx, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.ForceJSON)
		if err != nil {
			log.Printf("ai provider=%s init error: %v", cfg.AI.Provider, err)
			return Unconfigured{Provider: cfg.AI.Provider}
		}
		return c
	}
}

// Unconfigured stands in for a provider without usable credentials.
type Unconfigured struct {
	Provider string
}

func (u Unconfigured) Name() string { return u.Provider + ":unconfigured" }

func (u Unconfigured) Complete(ctx context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("%w: no api key configured for %s", domain.ErrUpstreamAuth, u.Provider)
}

// Configured reports whether c can reach a provider at all.
func Configured(c domain.CompletionClient) bool {
	_, bad := c.(Unconfigured)
	return !bad
}
