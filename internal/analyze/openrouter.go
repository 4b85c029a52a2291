// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/digestkit/arxiv-digest/pkg/types"
)

// openRouterBase is the OpenRouter API root. Package-level var for test
// substitution.
var openRouterBase = "https://openrouter.ai/api/v1"

// Backend abstracts the chat-completion API so tests can supply a mock.
type Backend interface {
	// Complete sends a prompt and returns the model's raw text reply.
	Complete(ctx context.Context, prompt string) (string, error)
}

// APIError is a non-2xx reply from the completion API. Per prd004-analysis
// R4.3, rate limiting and server errors are retryable while authentication
// and billing failures are not.
type APIError struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openrouter returned %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed on a later attempt.
func (e *APIError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
		return false
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RetryAfter returns the server-mandated wait, if any.
func (e *APIError) RetryAfter() time.Duration { return e.Delay }

// OpenRouter calls the OpenRouter chat-completions API.
type OpenRouter struct {
	APIKey  string
	Model   string
	Referer string
	AppName string
	Client  *http.Client

	// Generation parameters. Zero values are omitted from the request so the
	// provider's defaults apply.
	Temperature      float64
	TopP             float64
	TopK             int
	FrequencyPenalty float64
	PresencePenalty  float64
	Stop             []string
	MaxTokens        int
}

// NewOpenRouter builds a client from config, filling in the default
// generation parameters the digest uses.
func NewOpenRouter(cfg types.AnalyzeConfig) *OpenRouter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenRouter{
		APIKey:           cfg.APIKey,
		Model:            cfg.Model,
		Referer:          cfg.Referer,
		AppName:          cfg.AppName,
		Client:           &http.Client{Timeout: timeout},
		Temperature:      cfg.Temperature,
		TopP:             cfg.TopP,
		TopK:             cfg.TopK,
		FrequencyPenalty: cfg.FrequencyPenalty,
		PresencePenalty:  cfg.PresencePenalty,
		Stop:             cfg.Stop,
		MaxTokens:        cfg.MaxTokens,
	}
}

// chatRequest is the request body for the chat-completions endpoint.
type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature,omitempty"`
	TopP             float64       `json:"top_p,omitempty"`
	TopK             int           `json:"top_k,omitempty"`
	FrequencyPenalty float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64       `json:"presence_penalty,omitempty"`
	Stop             []string      `json:"stop,omitempty"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
}

// chatMessage is a single message in the conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the response body from the chat-completions endpoint.
type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// chatChoice is one completion alternative.
type chatChoice struct {
	Message chatMessage `json:"message"`
}

// Complete sends one prompt and returns the model's reply text.
func (o *OpenRouter) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: o.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature:      o.Temperature,
		TopP:             o.TopP,
		TopK:             o.TopK,
		FrequencyPenalty: o.FrequencyPenalty,
		PresencePenalty:  o.PresencePenalty,
		Stop:             o.Stop,
		MaxTokens:        o.MaxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openRouterBase+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)
	if o.Referer != "" {
		req.Header.Set("HTTP-Referer", o.Referer)
	}
	if o.AppName != "" {
		req.Header.Set("X-Title", o.AppName)
	}

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling openrouter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(body)),
			Delay:      parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var cResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding openrouter response: %w", err)
	}

	if len(cResp.Choices) == 0 {
		return "", fmt.Errorf("openrouter returned no choices")
	}
	return cResp.Choices[0].Message.Content, nil
}

// parseRetryAfter understands the delay-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
