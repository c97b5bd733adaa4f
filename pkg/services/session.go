package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zapdesk/flowengine/pkg/eventbus"
	"github.com/zapdesk/flowengine/pkg/events"
	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/persistence"
)

// Session is the application service for session visibility and control. All
// mutations go through the event bus so the worker's per-conversation
// ordering guarantees hold; the API never drives the engine directly.
type Session struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
}

// NewSession creates a new session service.
func NewSession(persistence persistence.Persistence, publisher eventbus.EventPublisher) *Session {
	return &Session{
		persistence: persistence,
		publisher:   publisher,
	}
}

// ActiveByConversation returns the conversation's active session.
func (s *Session) ActiveByConversation(ctx context.Context, conversationID string) (*models.Session, error) {
	return s.persistence.SessionRepository().ActiveSessionByConversation(ctx, conversationID)
}

// FetchByID returns a session regardless of state.
func (s *Session) FetchByID(ctx context.Context, id string) (*models.Session, error) {
	return s.persistence.SessionRepository().SessionByID(ctx, id)
}

// ReceiveMessage publishes an inbound conversation message for the worker.
func (s *Session) ReceiveMessage(ctx context.Context, organizationID, connectionID, conversationID, text string) error {
	event := &events.MessageReceived{
		BaseEvent:      s.baseEvent(events.MessageReceivedEvent, conversationID),
		OrganizationID: organizationID,
		ConnectionID:   connectionID,
		Text:           text,
	}

	err := s.publisher.Publish(ctx, conversationID, event)
	if err != nil {
		return fmt.Errorf("failed to publish message received event: %w", err)
	}

	return nil
}

// RequestStart asks the worker to start a flow manually for a conversation.
// The flow must exist, be active and not a draft; the active-session check
// happens on the worker under the conversation lock.
func (s *Session) RequestStart(ctx context.Context, organizationID, flowID, conversationID, startedBy string) error {
	flow, err := s.persistence.FlowRepository().FlowByID(ctx, organizationID, flowID)
	if err != nil {
		return err
	}

	if !flow.IsActive || flow.IsDraft {
		return NewValidationError("RequestStart", "FLOW_NOT_STARTABLE",
			"flow is not active or is a draft", ErrInvalidRequest)
	}

	event := &events.StartRequested{
		BaseEvent:      s.baseEvent(events.StartRequestedEvent, conversationID),
		OrganizationID: organizationID,
		FlowID:         flowID,
		StartedBy:      startedBy,
	}

	err = s.publisher.Publish(ctx, conversationID, event)
	if err != nil {
		return fmt.Errorf("failed to publish start request: %w", err)
	}

	return nil
}

// RequestCancel asks the worker to cancel the conversation's active session.
func (s *Session) RequestCancel(ctx context.Context, conversationID, requestedBy string) error {
	event := &events.CancelRequested{
		BaseEvent:   s.baseEvent(events.CancelRequestedEvent, conversationID),
		RequestedBy: requestedBy,
	}

	err := s.publisher.Publish(ctx, conversationID, event)
	if err != nil {
		return fmt.Errorf("failed to publish cancel request: %w", err)
	}

	return nil
}

func (s *Session) baseEvent(eventType events.EventType, conversationID string) events.BaseEvent {
	return events.BaseEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		ConversationID: conversationID,
	}
}
