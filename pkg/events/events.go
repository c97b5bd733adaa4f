// Package events defines the event types exchanged between the API surface,
// the timer scheduler and the engine workers.
package events

import (
	"time"

	"github.com/zapdesk/flowengine/pkg/models"
)

type EventType string

// Kafka topic carrying all engine events. Messages are keyed by
// conversation id so one conversation always lands on one partition,
// preserving arrival order.
const Topic = "flowengine.events"

const EventKeyMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Engine inputs.
	MessageReceivedEvent EventType = "conversation.message.received"
	TimerFiredEvent      EventType = "session.timer.fired"
	StartRequestedEvent  EventType = "session.start.requested"
	CancelRequestedEvent EventType = "session.cancel.requested"

	// Session lifecycle notifications.
	SessionStartedEvent   EventType = "session.started"
	SessionSuspendedEvent EventType = "session.suspended"
	SessionCompletedEvent EventType = "session.completed"
	SessionCancelledEvent EventType = "session.cancelled"
	SessionFailedEvent    EventType = "session.failed"
)

type BaseEvent struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id"`
}

// MessageReceived is published for every inbound message of a conversation.
type MessageReceived struct {
	BaseEvent

	OrganizationID string `json:"organization_id"`
	ConnectionID   string `json:"connection_id"`
	Text           string `json:"text"`
}

func (MessageReceived) GetType() EventType { return MessageReceivedEvent }

// TimerFired resumes a session suspended on a delay node. Delivery is
// at-least-once; the engine validates the session before advancing.
type TimerFired struct {
	BaseEvent

	SessionID string `json:"session_id"`
	NodeID    string `json:"node_id"`
}

func (TimerFired) GetType() EventType { return TimerFiredEvent }

// StartRequested starts a flow manually for a conversation.
type StartRequested struct {
	BaseEvent

	OrganizationID string `json:"organization_id"`
	FlowID         string `json:"flow_id"`
	StartedBy      string `json:"started_by"`
}

func (StartRequested) GetType() EventType { return StartRequestedEvent }

// CancelRequested cancels the conversation's active session, if any.
type CancelRequested struct {
	BaseEvent

	RequestedBy string `json:"requested_by"`
}

func (CancelRequested) GetType() EventType { return CancelRequestedEvent }

// SessionStarted notifies observers that a flow began executing.
type SessionStarted struct {
	BaseEvent

	SessionID string `json:"session_id"`
	FlowID    string `json:"flow_id"`
	StartedBy string `json:"started_by,omitempty"`
}

func (SessionStarted) GetType() EventType { return SessionStartedEvent }

// SessionSuspended notifies observers that a session is awaiting input or a
// timer.
type SessionSuspended struct {
	BaseEvent

	SessionID string              `json:"session_id"`
	FlowID    string              `json:"flow_id"`
	NodeID    string              `json:"node_id"`
	State     models.SessionState `json:"state"`
	ResumeAt  *time.Time          `json:"resume_at,omitempty"`
}

func (SessionSuspended) GetType() EventType { return SessionSuspendedEvent }

// SessionEnded is the shared payload of the terminal lifecycle events.
type SessionEnded struct {
	BaseEvent

	SessionID string              `json:"session_id"`
	FlowID    string              `json:"flow_id"`
	State     models.SessionState `json:"state"`
	Reason    string              `json:"reason,omitempty"`
}

// SessionCompleted notifies observers of a successful termination.
type SessionCompleted struct{ SessionEnded }

func (SessionCompleted) GetType() EventType { return SessionCompletedEvent }

// SessionCancelled notifies observers of an explicit cancellation.
type SessionCancelled struct{ SessionEnded }

func (SessionCancelled) GetType() EventType { return SessionCancelledEvent }

// SessionFailed notifies observers of a failed termination.
type SessionFailed struct{ SessionEnded }

func (SessionFailed) GetType() EventType { return SessionFailedEvent }
