// Package webhook issues the outbound HTTP calls of webhook nodes.
package webhook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zapdesk/flowengine/pkg/protocol"
)

const maxResponseBytes = 1 << 20

// Caller performs webhook node requests. The per-node timeout arrives through
// ctx; the client carries no timeout of its own so node configurations of any
// length are honored. It implements protocol.WebhookCaller.
type Caller struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewCaller creates a webhook caller.
func NewCaller(logger *slog.Logger) *Caller {
	return &Caller{
		httpClient: &http.Client{},
		logger:     logger.With("module", "webhook"),
	}
}

// Call executes one HTTP request and returns its status and body. Responses
// larger than 1 MiB are truncated.
func (c *Caller) Call(
	ctx context.Context,
	method, url string,
	headers map[string]string,
	body string,
) (protocol.WebhookResponse, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, bodyReader)
	if err != nil {
		return protocol.WebhookResponse{}, fmt.Errorf("failed to create webhook request: %w", err)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return protocol.WebhookResponse{}, fmt.Errorf("webhook request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return protocol.WebhookResponse{}, fmt.Errorf("failed to read webhook response: %w", err)
	}

	c.logger.DebugContext(ctx, "Webhook call completed",
		"method", req.Method,
		"url", url,
		"status_code", resp.StatusCode,
		"body_length", len(respBody),
	)

	return protocol.WebhookResponse{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
	}, nil
}
