package tiebreaker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"
)

// ChatMessage is one message of a chat completion prompt.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer turns a chat prompt into the model's text answer.
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// OpenAIConfig configures an OpenAI-compatible chat completions client.
type OpenAIConfig struct {
	// BaseURL is the API root, e.g. https://api.openai.com/v1
	BaseURL string

	// Model is the model identifier sent with each request.
	Model string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout bounds a single request. Default: 30 seconds
	Timeout time.Duration

	// MaxRetries is how often transient failures (5xx, network) are retried.
	// Default: 2
	MaxRetries int

	// Temperature is the sampling temperature. Default: 0
	Temperature float64
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []ChatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	N              int               `json:"n,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// OpenAICompleter calls the /chat/completions endpoint of an
// OpenAI-compatible API.
type OpenAICompleter struct {
	config  OpenAIConfig
	client  *http.Client
	logger  *slog.Logger
	backoff func(attempt int) time.Duration
}

// NewOpenAICompleter creates a client. BaseURL and Model are required.
func NewOpenAICompleter(cfg OpenAIConfig, logger *slog.Logger) (*OpenAICompleter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url cannot be empty")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &OpenAICompleter{
		config: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
			Timeout: cfg.Timeout,
		},
		logger: logger.With("component", "tiebreaker.openai"),
		backoff: func(attempt int) time.Duration {
			return time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
		},
	}, nil
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:          c.config.Model,
		Messages:       messages,
		Temperature:    c.config.Temperature,
		N:              1,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	data, err := c.doRequest(ctx, body)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", &ParseError{Raw: string(data), Cause: fmt.Errorf("failed to unmarshal response: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	c.logger.Debug("completion received",
		"model", resp.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"total_tokens", resp.Usage.TotalTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

// doRequest posts body with retry and exponential backoff on transient errors.
func (c *OpenAICompleter) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	url := c.config.BaseURL + "/chat/completions"
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			c.logger.Debug("retrying completion request", "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil || isTimeout(err) {
				return nil, &TimeoutError{Timeout: c.config.Timeout}
			}
			lastErr = &CompletionError{Message: err.Error(), Cause: err}
			c.logger.Warn("completion request failed, will retry", "attempt", attempt+1, "error", err)
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if readErr != nil {
				return nil, &ParseError{Cause: fmt.Errorf("failed to read response: %w", readErr)}
			}
			return data, nil
		}

		cerr := &CompletionError{StatusCode: resp.StatusCode, Message: string(data)}
		if !cerr.Retryable() {
			return nil, cerr
		}
		lastErr = cerr
		c.logger.Warn("completion request returned error status, will retry",
			"status", resp.StatusCode,
			"attempt", attempt+1,
		)
	}
	return nil, lastErr
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
