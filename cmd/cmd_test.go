package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/ai"
	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/matching"
)

func TestDecodeConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	config, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Listen != ":8080" {
		t.Fatalf("unexpected listen address: %q", config.Listen)
	}
	if config.Server.RequestTimeout != 30*time.Second || config.Server.MaxBodyBytes != 1<<20 {
		t.Fatalf("unexpected server config: %+v", config.Server)
	}
	if config.Matching.DefaultK != 5 {
		t.Fatalf("unexpected default k: %d", config.Matching.DefaultK)
	}
	if config.AI.Provider != "" || config.AI.Concurrency != 4 || config.AI.QueueDepth != 64 {
		t.Fatalf("unexpected ai config: %+v", config.AI)
	}
	if config.AI.DeadlineReserve != 250*time.Millisecond {
		t.Fatalf("unexpected deadline reserve: %v", config.AI.DeadlineReserve)
	}
	if config.AI.InitialBackoff != 500*time.Millisecond || config.AI.MaxBackoff != 5*time.Second {
		t.Fatalf("unexpected backoff: %v/%v", config.AI.InitialBackoff, config.AI.MaxBackoff)
	}
	if config.AI.Gemini.Model != "gemini-2.5-flash" || config.AI.OpenAI.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected models: %q %q", config.AI.Gemini.Model, config.AI.OpenAI.Model)
	}
}

func TestDecodeConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("AMPLYST_AI_PROVIDER", "openai")
	t.Setenv("AMPLYST_AI_TIMEOUT", "3s")
	t.Setenv("AMPLYST_AI_OPENAI_BASE_URL", "http://localhost:9999/v1/")
	t.Setenv("AMPLYST_MATCHING_DEFAULT_K", "8")

	v := viper.New()
	setDefaults(v)

	config, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.AI.Provider != "openai" || config.AI.Timeout != 3*time.Second {
		t.Fatalf("env overrides not applied: %+v", config.AI)
	}
	if config.AI.OpenAI.BaseURL != "http://localhost:9999/v1/" {
		t.Fatalf("unexpected base url: %q", config.AI.OpenAI.BaseURL)
	}
	if config.Matching.DefaultK != 8 {
		t.Fatalf("unexpected default k: %d", config.Matching.DefaultK)
	}
}

func TestDecodeConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amplyst-matcher.yaml")
	content := "listen: 127.0.0.1:9000\nai:\n  provider: webhook\n  webhook:\n    endpoint: http://127.0.0.1:7000/generate\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("read config: %v", err)
	}

	config, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Listen != "127.0.0.1:9000" || config.AI.Webhook.Endpoint != "http://127.0.0.1:7000/generate" {
		t.Fatalf("file values not applied: %+v %+v", config, config.AI.Webhook)
	}
	if config.AI.MaxAttempts != 3 {
		t.Fatalf("defaults must survive a partial file, got %d", config.AI.MaxAttempts)
	}
}

func testAIConfig() *AIConfig {
	return &AIConfig{
		Gemini:  &GeminiConfig{},
		OpenAI:  &OpenAIConfig{},
		Webhook: &WebhookConfig{},
	}
}

func TestNewGenerator(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	tests := []struct {
		name      string
		configure func(cfg *AIConfig)
		provider  string
		model     string
		wantNil   bool
		wantErr   error
		anyErr    bool
	}{
		{name: "empty means none", configure: func(*AIConfig) {}, provider: providerNone, wantNil: true},
		{name: "explicit none", configure: func(cfg *AIConfig) { cfg.Provider = "None" }, provider: providerNone, wantNil: true},
		{name: "unknown provider", configure: func(cfg *AIConfig) { cfg.Provider = "claude" }, wantErr: ai.ErrMisconfigured},
		{name: "gemini without key", configure: func(cfg *AIConfig) { cfg.Provider = "gemini" }, anyErr: true},
		{name: "openai without key", configure: func(cfg *AIConfig) { cfg.Provider = "openai" }, anyErr: true},
		{
			name: "openai with key",
			configure: func(cfg *AIConfig) {
				cfg.Provider = "openai"
				cfg.OpenAI.APIKey = "sk-test"
				cfg.OpenAI.Model = "gpt-test"
			},
			provider: providerOpenAI,
			model:    "gpt-test",
		},
		{name: "webhook without endpoint", configure: func(cfg *AIConfig) { cfg.Provider = "webhook" }, wantErr: ai.ErrMisconfigured},
		{
			name: "webhook",
			configure: func(cfg *AIConfig) {
				cfg.Provider = "webhook"
				cfg.Webhook.Endpoint = "http://127.0.0.1:7000/generate"
				cfg.Webhook.Model = "local"
			},
			provider: providerWebhook,
			model:    "local",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testAIConfig()
			tc.configure(cfg)

			provider, generator, err := newGenerator(context.Background(), cfg, zap.NewNop())
			switch {
			case tc.wantErr != nil:
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			case tc.anyErr:
				if err == nil {
					t.Fatalf("expected an error")
				}
				return
			case err != nil:
				t.Fatalf("unexpected error: %v", err)
			}

			if provider != tc.provider {
				t.Fatalf("expected provider %q, got %q", tc.provider, provider)
			}
			if tc.wantNil {
				if generator != nil {
					t.Fatalf("expected no generator, got %T", generator)
				}
				return
			}
			if generator.Model() != tc.model {
				t.Fatalf("expected model %q, got %q", tc.model, generator.Model())
			}
		})
	}
}

func TestNewRankerHeuristicOnly(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	config, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ranker, err := newRanker(context.Background(), config, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := readRawRequest(strings.NewReader(`{
		"campaign": {"title": "t", "description": "d", "niche": "fitness"},
		"candidates": [
			{"id": "a", "niche": "fitness", "followers": 1000},
			{"id": "b", "niche": "beauty", "followers": 5000},
			{"id": "c", "niche": "fitness", "followers": 3000}
		],
		"k": 2
	}`), "-")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := ranker.Rank(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != matching.SourceHeuristic || strings.Join(res.Matches, ",") != "c,a" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestReadRawRequestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.json")
	if err := os.WriteFile(path, []byte(`{"campaign": {}, "candidates": [], "k": 3}`), 0o600); err != nil {
		t.Fatalf("write request: %v", err)
	}

	raw, err := readRawRequest(strings.NewReader("ignored"), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.K == nil || *raw.K != 3 {
		t.Fatalf("unexpected k: %v", raw.K)
	}

	if _, err := readRawRequest(strings.NewReader("{"), "-"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestRenderPrompt(t *testing.T) {
	raw, err := readRawRequest(strings.NewReader(`{
		"campaign": {"title": "Spring", "description": "Gym wear"},
		"candidates": [{"id": "a"}, {"id": "b"}]
	}`), "-")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt, err := renderPrompt(raw, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, "Return at most 1 candidate ids") || !strings.Contains(prompt, "Spring") {
		t.Fatalf("unexpected prompt:\n%s", prompt)
	}

	raw.Campaign = nil
	var verr *matching.ValidationError
	if _, err := renderPrompt(raw, 1); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWriteRankOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := writeRankOutput(&buf, matching.Result{Source: matching.SourceHeuristic}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"matches": []`) || !strings.Contains(buf.String(), `"source": "heuristic"`) {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)

	if !strings.HasPrefix(buf.String(), app+" version: ") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
