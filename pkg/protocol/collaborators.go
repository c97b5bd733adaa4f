// Package protocol defines the interfaces the engine uses to reach external
// collaborators. Implementations live outside the engine and are injected at
// construction time so the engine stays configuration-free and testable.
package protocol

import (
	"context"
	"time"

	"github.com/zapdesk/flowengine/pkg/models"
)

// OutboundMessage is the payload handed to the message channel.
type OutboundMessage struct {
	Text      string
	Media     *models.MediaRef
	Gallery   []models.MediaRef
	ItemDelay time.Duration // Pause between gallery items
}

// Messenger sends content to a conversation on the underlying channel.
type Messenger interface {
	SendMessage(ctx context.Context, conversationID string, msg OutboundMessage) error
	SendTyping(ctx context.Context, conversationID string) error
}

// ChatTurn is one prior exchange supplied to the AI provider when a node
// requests conversation history.
type ChatTurn struct {
	Role    string // "user" or "assistant"
	Content string
}

// CompletionRequest describes one AI completion call.
type CompletionRequest struct {
	SystemPrompt string
	History      []ChatTurn
	UserMessage  string
	Model        string
	Temperature  float64
}

// AIProvider produces a completion for an ai_response node. Calls must
// respect ctx deadlines; the engine never retries them.
type AIProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// HistoryProvider supplies the last turns of a conversation for AI prompts.
type HistoryProvider interface {
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]ChatTurn, error)
}

// WebhookResponse is the outcome of a webhook node call.
type WebhookResponse struct {
	StatusCode int
	Body       string
}

// WebhookCaller issues the HTTP call of a webhook node with the configured
// timeout already applied through ctx.
type WebhookCaller interface {
	Call(ctx context.Context, method, url string, headers map[string]string, body string) (WebhookResponse, error)
}

// CRMService covers the CRM-side effects of action and transfer nodes.
type CRMService interface {
	AddTag(ctx context.Context, conversationID, tag string) error
	RemoveTag(ctx context.Context, conversationID, tag string) error
	Notify(ctx context.Context, conversationID, target, message string, external bool) error
	CreateTask(ctx context.Context, conversationID, title, description string) error
	TransferConversation(ctx context.Context, conversationID string, kind models.TransferTarget, targetID string) error
	CloseConversation(ctx context.Context, conversationID string) error
}

// EmailSender delivers the send_email action.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// TimerScheduler persists a durable timer for a delayed session. Delivery is
// at-least-once; the engine re-checks the session at fire time so duplicate
// fires are no-ops.
type TimerScheduler interface {
	ScheduleAt(ctx context.Context, conversationID, sessionID, nodeID string, fireAt time.Time) error
}
