package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ProviderConfig carries the settings needed to construct any provider.
type ProviderConfig struct {
	Provider        string
	Model           string
	AnthropicAPIKey string
	AnthropicURL    string
	GeminiAPIKey    string
	OllamaHost      string
}

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "anthropic", "claude":
		ac := DefaultAnthropicConfig(cfg.AnthropicAPIKey)
		if cfg.AnthropicURL != "" {
			ac.BaseURL = cfg.AnthropicURL
		}
		if cfg.Model != "" {
			ac.Model = cfg.Model
		}
		return NewAnthropic(ac, logger), nil
	case "gemini", "google":
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.Model, logger)
	case "ollama":
		return NewOllama(cfg.OllamaHost, cfg.Model, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// DefaultModel is the model a provider uses when none is configured.
func DefaultModel(provider string) string {
	switch strings.ToLower(provider) {
	case "gemini", "google":
		return "gemini-2.5-pro"
	case "ollama":
		return "qwen2.5-coder"
	case "scripted":
		return "scripted"
	default:
		return "claude-sonnet-4-5"
	}
}
