package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/ai"
)

const (
	providerName = "openai"
	defaultModel = "gpt-4o-mini"
)

var _ ai.Generator = (*Generator)(nil)

// Generator talks to any OpenAI-compatible chat completions endpoint.
type Generator struct {
	client *openai.Client
	model  string
}

// Options configures the OpenAI client. BaseURL is optional.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewGenerator builds a generator. The SDK's own retries are disabled since
// the Invoker owns the retry policy.
func NewGenerator(opts Options) (*Generator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", ai.ErrMisconfigured)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(opts.BaseURL); baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	client := openai.NewClient(reqOpts...)
	return &Generator{client: &client, model: model}, nil
}

// GenerateContent sends the prompt as a single user message and returns the first choice.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt must not be empty", ai.ErrInvalidPrompt)
	}

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices: %w", ai.ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", &ai.StatusError{
			Provider:   providerName,
			StatusCode: http.StatusUnprocessableEntity,
			Message:    "refused: " + choice.Message.Refusal,
		}
	}

	output := strings.TrimSpace(choice.Message.Content)
	if output == "" {
		return "", fmt.Errorf("openai: %w", ai.ErrEmptyResponse)
	}

	return output, nil
}

func (g *Generator) Model() string { return g.model }

func classify(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("chat completion: %w", err)
	}

	se := &ai.StatusError{
		Provider:   providerName,
		StatusCode: apiErr.StatusCode,
		Err:        err,
	}
	if apiErr.Response != nil {
		se.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
	}
	return se
}

// parseRetryAfter understands the delay-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
