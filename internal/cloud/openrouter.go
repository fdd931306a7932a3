// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/fireside/internal/config"
	"github.com/jeranaias/fireside/internal/conversation"
)

// Configuration constants for the OpenRouter API.
const (
	// DefaultOpenRouterURL is the base URL for the OpenRouter API.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxRetries is the default number of attempts for transient errors.
	DefaultMaxRetries = 3

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second

	// MaxResponseSize caps the response body.
	// SECURITY: prevents memory exhaustion from a hostile or broken upstream.
	MaxResponseSize = 10 * 1024 * 1024
)

// Error variables for common OpenRouter errors.
var (
	ErrNotConfigured       = errors.New("API key not configured")
	ErrAuthFailed          = errors.New("authentication failed")
	ErrRateLimited         = errors.New("rate limited")
	ErrModelNotFound       = errors.New("model not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrEmptyResponse       = errors.New("empty or unexpected response")
	ErrContentFiltered     = errors.New("response blocked by content filter")
)

// OpenRouterError represents an error from the OpenRouter API.
type OpenRouterError struct {
	Code    string
	Message string
	Status  int
}

// Error implements the error interface.
func (e *OpenRouterError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("OpenRouter error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("OpenRouter error (HTTP %d): %s", e.Status, e.Message)
}

// ChatMessage is a single message in OpenAI chat format.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the chat completions request body.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatResponse is the chat completions response body.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// GetContent returns the content of the first choice, or "" if none.
func (r *ChatResponse) GetContent() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

type apiErrorResponse struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// OpenRouterClient talks to the OpenRouter chat completions endpoint.
// It is safe for concurrent use; per-request settings never mutate it.
type OpenRouterClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	defaults   config.ModelConfig
	maxRetries int
	siteURL    string
	siteName   string

	// sleep is swapped in tests to skip backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOpenRouterClient creates a client. An empty key yields a client whose
// replies are all ErrNotConfigured failures.
func NewOpenRouterClient(apiKey string, defaults config.ModelConfig) *OpenRouterClient {
	return &OpenRouterClient{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultOpenRouterURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		defaults:   defaults,
		maxRetries: DefaultMaxRetries,
		siteURL:    "https://fireside.local",
		siteName:   "fireside",
		sleep:      sleepContext,
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *OpenRouterClient) WithBaseURL(url string) *OpenRouterClient {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// WithTimeout sets the per-request timeout.
func (c *OpenRouterClient) WithTimeout(timeout time.Duration) *OpenRouterClient {
	c.httpClient.Timeout = timeout
	return c
}

// WithMaxRetries sets the number of attempts. Values below 1 mean one attempt.
func (c *OpenRouterClient) WithMaxRetries(maxRetries int) *OpenRouterClient {
	if maxRetries < 1 {
		maxRetries = 1
	}
	c.maxRetries = maxRetries
	return c
}

// WithHTTPClient replaces the HTTP client.
func (c *OpenRouterClient) WithHTTPClient(hc *http.Client) *OpenRouterClient {
	c.httpClient = hc
	return c
}

// IsConfigured reports whether an API key is set.
func (c *OpenRouterClient) IsConfigured() bool {
	return c.apiKey != ""
}

// =============================================================================
// GENERATE
// =============================================================================

// Generate implements Generator.
func (c *OpenRouterClient) Generate(ctx context.Context, prompt string, history []conversation.ModelTurn, settings *Settings) string {
	r := settings.Resolve(c.defaults)

	resp, err := c.Chat(ctx, ChatRequest{
		Model:       r.ModelID,
		Messages:    buildMessages(prompt, history),
		Temperature: r.Temperature,
		MaxTokens:   r.MaxOutputTokens,
	})
	if err != nil {
		log.Printf("MODEL_ERROR | provider=openrouter model=%s key=%s error=%v", r.ModelID, keyFingerprint(c.apiKey), err)
		return ErrorReply("communicating with the AI model: %v", err)
	}

	if len(resp.Choices) > 0 && resp.Choices[0].FinishReason == "content_filter" {
		log.Printf("MODEL_BLOCKED | provider=openrouter model=%s", r.ModelID)
		return ErrorReply("%v", ErrContentFiltered)
	}
	text := resp.GetContent()
	if text == "" {
		log.Printf("MODEL_EMPTY | provider=openrouter model=%s", r.ModelID)
		return ErrorReply("could not parse the model's response (%v)", ErrEmptyResponse)
	}

	log.Printf("MODEL_OK | provider=openrouter model=%s history=%d", r.ModelID, len(history))
	return text
}

// buildMessages maps history onto OpenAI roles and appends the prompt.
func buildMessages(prompt string, history []conversation.ModelTurn) []ChatMessage {
	messages := make([]ChatMessage, 0, len(history)+1)
	for _, t := range history {
		role := "user"
		if t.Role == conversation.RoleModel {
			role = "assistant"
		}
		messages = append(messages, ChatMessage{Role: role, Content: t.Content})
	}
	return append(messages, ChatMessage{Role: "user", Content: prompt})
}

// Chat sends a chat completion request, retrying rate limits and 5xx
// responses with exponential backoff.
func (c *OpenRouterClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	url := c.baseURL + "/chat/completions"
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, calculateBackoff(attempt)); err != nil {
				return nil, err
			}
		}

		resp, err := c.doRequest(ctx, url, req)
		if err == nil {
			return resp, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *OpenRouterClient) doRequest(ctx context.Context, url string, body ChatRequest) (*ChatResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	log.Printf("API_RESPONSE | status=%d duration=%v", resp.StatusCode, time.Since(start))

	data, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, data)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(data, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &chatResp, nil
}

// setHeaders sets auth and attribution headers.
func (c *OpenRouterClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "fireside/"+userAgentVersion)
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

const userAgentVersion = "1.0"

// readResponse reads at most MaxResponseSize bytes.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts HTTP error responses to Go errors.
func handleErrorResponse(status int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		msg := apiErr.Error.Message
		switch status {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
		case http.StatusPaymentRequired:
			return fmt.Errorf("%w: %s", ErrInsufficientCredits, msg)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrModelNotFound, msg)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, msg)
		}
		return &OpenRouterError{Code: strings.Trim(string(apiErr.Error.Code), `"`), Message: msg, Status: status}
	}

	switch status {
	case http.StatusUnauthorized:
		return ErrAuthFailed
	case http.StatusPaymentRequired:
		return ErrInsufficientCredits
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return &OpenRouterError{Message: strings.TrimSpace(string(body)), Status: status}
}

// isRetryable reports whether err is a rate limit or a 5xx.
func isRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var orErr *OpenRouterError
	if errors.As(err, &orErr) {
		return orErr.Status >= 500 && orErr.Status < 600
	}
	return false
}

// calculateBackoff returns 1s, 2s, 4s... capped at retryMaxDelay.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
