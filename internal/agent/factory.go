// ABOUTME: Builds the configured Invoker from AgentConfig
// ABOUTME: Supports OpenAI, Anthropic and Ollama via langchaingo; falls back to Unconfigured

package agent

import (
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/2389/minecraft-ai/internal/config"
)

// New returns an Invoker for cfg. Missing credentials yield an Unconfigured
// invoker rather than an error so the server can still start and report 503.
func New(cfg config.AgentConfig, logger *slog.Logger) (Invoker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	model, err := newModel(cfg)
	if err != nil {
		return nil, err
	}
	if model == nil {
		reason := fmt.Sprintf("agent provider %q has no credentials", cfg.Provider)
		if cfg.Provider == config.ProviderNone {
			reason = "agent disabled"
		}
		logger.Warn("agent not configured, message endpoints will return 503", "reason", reason)
		return Unconfigured{Reason: reason}, nil
	}

	logger.Info("agent configured", "provider", cfg.Provider, "model", cfg.Model)
	return NewLLMInvoker(model, LLMOptions{
		SystemPrompt: cfg.SystemPrompt,
		MaxTokens:    cfg.MaxTokens,
		Temperature:  cfg.Temperature,
		Timeout:      cfg.Timeout,
	}, logger), nil
}

// newModel returns nil, nil when the provider lacks credentials.
func newModel(cfg config.AgentConfig) (llms.Model, error) {
	switch cfg.Provider {
	case config.ProviderNone:
		return nil, nil

	case config.ProviderOpenAI, "":
		if cfg.APIKey == "" {
			return nil, nil
		}
		opts := []openai.Option{openai.WithToken(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating openai client: %w", err)
		}
		return llm, nil

	case config.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, nil
		}
		opts := []anthropic.Option{anthropic.WithToken(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		llm, err := anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating anthropic client: %w", err)
		}
		return llm, nil

	case config.ProviderOllama:
		// Ollama runs locally without credentials.
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}
		return llm, nil

	default:
		return nil, fmt.Errorf("unsupported agent provider %q", cfg.Provider)
	}
}
