package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/ai"
	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/ai/gemini"
	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/ai/openai"
	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/ai/webhook"
	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/logger"
	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/matching"
	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/secrets"
)

const (
	providerNone    = "none"
	providerGemini  = "gemini"
	providerOpenAI  = "openai"
	providerWebhook = "webhook"
)

// newRanker assembles the pipeline. Without a provider the ranker works in
// heuristic-only mode.
func newRanker(ctx context.Context, config *Config, log *zap.Logger) (*matching.Ranker, error) {
	provider, generator, err := newGenerator(ctx, config.AI, log)
	if err != nil {
		return nil, err
	}

	if generator == nil {
		log.Warn("no ai provider configured, ranking with the heuristic only",
			zap.String("hint", "set ai.provider to gemini, openai or webhook"),
		)
		return matching.NewRanker(nil, config.Matching.DefaultK, log), nil
	}

	invokerLogger := logger.WithCommonFields(log, provider, generator.Model())
	gate := ai.NewGate(config.AI.Concurrency, config.AI.QueueDepth)
	invoker := ai.NewInvoker(provider, generator, gate, ai.InvokerConfig{
		Timeout:         config.AI.Timeout,
		MaxAttempts:     config.AI.MaxAttempts,
		InitialBackoff:  config.AI.InitialBackoff,
		MaxBackoff:      config.AI.MaxBackoff,
		MaxLogLength:    config.AI.MaxLogLength,
		DeadlineReserve: config.AI.DeadlineReserve,
	}, invokerLogger)

	log.Info("ai provider configured",
		zap.String(logger.FieldProvider, provider),
		zap.String(logger.FieldModel, generator.Model()),
		zap.Int("concurrency", gate.Limit()),
		zap.Int("queue_depth", config.AI.QueueDepth),
	)

	return matching.NewRanker(invoker, config.Matching.DefaultK, invokerLogger), nil
}

// newGenerator returns a nil generator when no provider is selected.
func newGenerator(ctx context.Context, cfg *AIConfig, log *zap.Logger) (string, ai.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", providerNone:
		return providerNone, nil, nil

	case providerGemini:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return "", nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}
		generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
		if err != nil {
			return "", nil, err
		}
		return provider, generator, nil

	case providerOpenAI:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return "", nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
		}
		generator, err := openai.NewGenerator(openai.Options{
			APIKey:  apiKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		})
		if err != nil {
			return "", nil, err
		}
		return provider, generator, nil

	case providerWebhook:
		var token string
		if cfg.Webhook.Token != "" || cfg.Webhook.TokenFile != "" {
			var err error
			token, err = secrets.Load(secrets.Source{
				Name:  "webhook token",
				Value: cfg.Webhook.Token,
				File:  cfg.Webhook.TokenFile,
			})
			if err != nil {
				return "", nil, err
			}
		}
		client, err := webhook.New(cfg.Webhook.Endpoint, token, cfg.Webhook.Model, log)
		if err != nil {
			return "", nil, err
		}
		return provider, client, nil

	default:
		return "", nil, fmt.Errorf("%w: unsupported ai provider %q", ai.ErrMisconfigured, cfg.Provider)
	}
}
