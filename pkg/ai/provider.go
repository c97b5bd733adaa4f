// Package ai provides an HTTP client for OpenAI-compatible chat completion
// APIs, used by ai_response nodes.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zapdesk/flowengine/pkg/protocol"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 60 * time.Second

	maxResponseBytes = 1 << 20
)

var (
	// ErrEmptyCompletion is returned when the API answers without any choice.
	ErrEmptyCompletion = errors.New("completion response has no choices")
	// ErrCompletionFailed is returned when the API answers with an error status.
	ErrCompletionFailed = errors.New("completion request failed")
)

// Client calls a chat-completions endpoint. It implements protocol.AIProvider
// and never retries; the caller's ctx bounds each request.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxTokens  int
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a non-default API host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithMaxTokens caps the completion length requested from the API.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) {
		c.maxTokens = maxTokens
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a chat-completions client.
func NewClient(logger *slog.Logger, apiKey string, opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		logger:     logger.With("module", "ai"),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one chat completion request and returns the assistant's text.
func (c *Client) Complete(ctx context.Context, req protocol.CompletionRequest) (string, error) {
	payload := chatRequest{
		Model:       req.Model,
		Messages:    buildMessages(req),
		Temperature: req.Temperature,
		MaxTokens:   c.maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}

	var parsed chatResponse

	err = json.Unmarshal(respBody, &parsed)
	if err != nil {
		return "", fmt.Errorf("failed to parse completion response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		if parsed.Error != nil {
			return "", fmt.Errorf("%w: %s (%s)", ErrCompletionFailed, parsed.Error.Message, parsed.Error.Type)
		}

		return "", fmt.Errorf("%w: status %d", ErrCompletionFailed, resp.StatusCode)
	}

	if len(parsed.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	choice := parsed.Choices[0]

	c.logger.DebugContext(ctx, "Completion received",
		"model", req.Model,
		"finish_reason", choice.FinishReason,
	)

	return choice.Message.Content, nil
}

// buildMessages assembles the chat transcript: system prompt first, then the
// conversation history oldest to newest, then the current user message.
func buildMessages(req protocol.CompletionRequest) []chatMessage {
	messages := make([]chatMessage, 0, len(req.History)+2)

	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}

	for _, turn := range req.History {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}

	messages = append(messages, chatMessage{Role: "user", Content: req.UserMessage})

	return messages
}
