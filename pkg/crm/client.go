// Package crm provides the HTTP client for the surrounding messaging CRM's
// internal API. The engine reaches conversations, tags, notifications and
// email through this single client.
package crm

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

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/protocol"
)

const (
	defaultTimeout = 15 * time.Second

	maxResponseBytes = 1 << 20
)

// ErrRequestFailed is returned when the CRM API answers with an error status.
var ErrRequestFailed = errors.New("crm request failed")

// Client talks to the CRM's internal API. It implements protocol.Messenger,
// protocol.CRMService, protocol.EmailSender and protocol.HistoryProvider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	logger     *slog.Logger
}

// NewClient creates a CRM API client for the given base URL. Requests carry
// the API token as a bearer credential.
func NewClient(logger *slog.Logger, baseURL, apiToken string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiToken:   apiToken,
		logger:     logger.With("module", "crm"),
	}
}

type outboundMessagePayload struct {
	Text        string            `json:"text,omitempty"`
	Media       *models.MediaRef  `json:"media,omitempty"`
	Gallery     []models.MediaRef `json:"gallery,omitempty"`
	ItemDelayMS int64             `json:"item_delay_ms,omitempty"`
}

// SendMessage delivers text, media or a gallery to the conversation's channel.
func (c *Client) SendMessage(ctx context.Context, conversationID string, msg protocol.OutboundMessage) error {
	payload := outboundMessagePayload{
		Text:        msg.Text,
		Media:       msg.Media,
		Gallery:     msg.Gallery,
		ItemDelayMS: msg.ItemDelay.Milliseconds(),
	}

	return c.post(ctx, "/conversations/"+conversationID+"/messages", payload)
}

// SendTyping shows a typing indicator in the conversation.
func (c *Client) SendTyping(ctx context.Context, conversationID string) error {
	return c.post(ctx, "/conversations/"+conversationID+"/typing", nil)
}

// AddTag attaches a tag to the conversation.
func (c *Client) AddTag(ctx context.Context, conversationID, tag string) error {
	return c.post(ctx, "/conversations/"+conversationID+"/tags", map[string]string{"tag": tag})
}

// RemoveTag detaches a tag from the conversation.
func (c *Client) RemoveTag(ctx context.Context, conversationID, tag string) error {
	return c.delete(ctx, "/conversations/"+conversationID+"/tags/"+tag)
}

// Notify sends an internal note to a team target, or an external notification
// when external is true.
func (c *Client) Notify(ctx context.Context, conversationID, target, message string, external bool) error {
	payload := map[string]any{
		"target":   target,
		"message":  message,
		"external": external,
	}

	return c.post(ctx, "/conversations/"+conversationID+"/notifications", payload)
}

// CreateTask opens a CRM task linked to the conversation.
func (c *Client) CreateTask(ctx context.Context, conversationID, title, description string) error {
	payload := map[string]string{
		"title":       title,
		"description": description,
	}

	return c.post(ctx, "/conversations/"+conversationID+"/tasks", payload)
}

// TransferConversation hands the conversation to a department, agent or queue.
func (c *Client) TransferConversation(
	ctx context.Context,
	conversationID string,
	kind models.TransferTarget,
	targetID string,
) error {
	payload := map[string]string{
		"target_kind": string(kind),
		"target_id":   targetID,
	}

	return c.post(ctx, "/conversations/"+conversationID+"/transfer", payload)
}

// CloseConversation marks the conversation as resolved.
func (c *Client) CloseConversation(ctx context.Context, conversationID string) error {
	return c.post(ctx, "/conversations/"+conversationID+"/close", nil)
}

// Send delivers one email through the CRM's mailer.
func (c *Client) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload := map[string]string{
		"to":        to,
		"subject":   subject,
		"html_body": htmlBody,
	}

	return c.post(ctx, "/emails", payload)
}

type historyResponse struct {
	Turns []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"turns"`
}

// RecentTurns returns the conversation's last turns, oldest first, for AI
// prompt assembly.
func (c *Client) RecentTurns(ctx context.Context, conversationID string, limit int) ([]protocol.ChatTurn, error) {
	url := fmt.Sprintf("%s/conversations/%s/history?limit=%d", c.baseURL, conversationID, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create history request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var parsed historyResponse

	err = json.Unmarshal(body, &parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse history response: %w", err)
	}

	turns := make([]protocol.ChatTurn, 0, len(parsed.Turns))
	for _, turn := range parsed.Turns {
		turns = append(turns, protocol.ChatTurn{Role: turn.Role, Content: turn.Content})
	}

	return turns, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	var bodyReader io.Reader

	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode crm request: %w", err)
		}

		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create crm request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	_, err = c.do(req)

	return err
}

func (c *Client) delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create crm request: %w", err)
	}

	_, err = c.do(req)

	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read crm response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.WarnContext(req.Context(), "CRM API returned error status",
			"method", req.Method,
			"path", req.URL.Path,
			"status_code", resp.StatusCode,
		)

		return nil, fmt.Errorf("%w: %s %s returned status %d",
			ErrRequestFailed, req.Method, req.URL.Path, resp.StatusCode)
	}

	return body, nil
}
