package llm

import (
	"context"
	"fmt"

	"ai_mentor_backend/internal/config"
)

// NewProvider creates a Provider from configuration, wrapped with logging.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL, cfg.Anthropic.Model)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	return WithLogging(base, cfg.Provider), nil
}

// NewEmbedder creates an Embedder from configuration.
func NewEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case "hash", "mock":
		return NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
}

// disabledProvider 模型未配置或初始化失败时使用，调用一律返回 ErrProviderUnavailable
type disabledProvider struct {
	err error
}

// Disabled returns a Provider that always fails with ErrProviderUnavailable.
func Disabled(err error) Provider {
	return &disabledProvider{err: err}
}

func (d *disabledProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	return nil, &ErrProviderUnavailable{Err: d.err}
}

func (d *disabledProvider) ModelID() string { return "disabled" }
