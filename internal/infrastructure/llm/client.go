// Package llm generates enforcement messages with an OpenAI-compatible chat
// completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultTimeout   = 20 * time.Second
	defaultMaxTokens = 300
	completionsPath  = "/chat/completions"
)

// Metrics is the subset of AppMetrics the client reports to.
type Metrics interface {
	ObserveLLMCall(model string, d time.Duration, err error)
}

// Config configures the client. Endpoint is the API base, for example
// https://api.openai.com/v1; a value already ending in /chat/completions is
// used as is.
type Config struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client implements enforcement.MessageGenerator.
type Client struct {
	cfg        Config
	url        string
	httpClient *http.Client
	metrics    Metrics
	logger     logging.Logger
}

// NewClient builds a client. A missing key or endpoint is not an error here;
// Generate reports it so callers fall back to templates.
func NewClient(cfg Config, metrics Metrics, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	url := strings.TrimRight(cfg.Endpoint, "/")
	if url != "" && !strings.HasSuffix(url, completionsPath) {
		url += completionsPath
	}
	return &Client{
		cfg:        cfg,
		url:        url,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    metrics,
		logger:     logger.Named("llm"),
	}
}

// Configured reports whether Generate can reach a model at all.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != "" && c.url != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends one system and one user message and returns the first
// choice's content.
func (c *Client) Generate(ctx context.Context, system, prompt string) (text string, err error) {
	if !c.Configured() {
		return "", errors.New(errors.ErrCodeConfiguration, "llm endpoint or api key not configured")
	}

	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveLLMCall(c.cfg.Model, time.Since(start), err)
		}
	}()

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "encode completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "build completion request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeMessageGenerationFailed, "completion request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		code := errors.ErrCodeMessageGenerationFailed
		if resp.StatusCode == http.StatusTooManyRequests {
			code = errors.ErrCodeTooManyRequests
		}
		return "", errors.New(code, fmt.Sprintf("llm returned %s", resp.Status)).
			WithDetail(strings.TrimSpace(string(payload)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "decode completion response")
	}
	if out.Error != nil {
		return "", errors.New(errors.ErrCodeMessageGenerationFailed, "llm error").WithDetail(out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.New(errors.ErrCodeMessageGenerationFailed, "llm returned no choices")
	}
	text = strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New(errors.ErrCodeMessageGenerationFailed, "llm returned empty content")
	}
	c.logger.Debug("message generated", logging.String("model", c.cfg.Model), logging.Int("chars", len(text)))
	return text, nil
}
