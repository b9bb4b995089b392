package webhook

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/ai"
)

const (
	providerName    = "webhook"
	contentType     = "application/json"
	contentEncoding = "gzip"
	userAgent       = "amplyst-matcher"
	maxResponseSize = 1 << 20
)

var _ ai.Generator = (*Client)(nil)

// Client posts prompts to a self-hosted "text in, text out" endpoint.
//
// Request:  {"model": "...", "prompt": "..."}
// Response: {"output": "..."} or a text/plain body.
type Client struct {
	token      string
	model      string
	logger     *zap.Logger
	HTTPClient *http.Client
	Endpoint   string
	UserAgent  string
}

type generateRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Output string `json:"output"`
	Text   string `json:"text"`
}

// New creates a client. The token is optional.
func New(endpoint, token, model string, logger *zap.Logger) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: webhook endpoint is required", ai.ErrMisconfigured)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:    strings.TrimSpace(token),
		model:    strings.TrimSpace(model),
		logger:   logger,
		Endpoint: endpoint,
		// Deadlines come from the caller's context.
		HTTPClient: &http.Client{},
		UserAgent:  userAgent,
	}, nil
}

func (c *Client) Model() string { return c.model }

// GenerateContent posts the prompt and returns the endpoint's text.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt must not be empty", ai.ErrInvalidPrompt)
	}

	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ai.ErrMisconfigured, err)
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.request(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ai.StatusError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(data)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	output, err := decodeOutput(resp.Header.Get("Content-Type"), data)
	if err != nil {
		return "", err
	}
	if output == "" {
		return "", fmt.Errorf("webhook: %w", ai.ErrEmptyResponse)
	}

	return output, nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	return io.ReadAll(io.LimitReader(reader, maxResponseSize))
}

func decodeOutput(header string, data []byte) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(header)
	if mediaType != contentType {
		return strings.TrimSpace(string(data)), nil
	}

	var response generateResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return "", fmt.Errorf("decode webhook response: %w", err)
	}

	if out := strings.TrimSpace(response.Output); out != "" {
		return out, nil
	}
	return strings.TrimSpace(response.Text), nil
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
