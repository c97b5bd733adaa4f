package models

import (
	"strconv"
	"time"
)

// SessionState is the lifecycle state of a flow session.
type SessionState string

const (
	SessionRunning       SessionState = "running"
	SessionAwaitingInput SessionState = "awaiting_input"
	SessionAwaitingTimer SessionState = "awaiting_timer"
	SessionCompleted     SessionState = "completed"
	SessionCancelled     SessionState = "cancelled"
	SessionFailed        SessionState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s SessionState) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled || s == SessionFailed
}

// Session is the live execution state of one flow bound to one conversation.
// At most one active session exists per conversation. StateVersion implements
// optimistic concurrency: every persisted mutation compares-and-swaps it.
type Session struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id" validate:"required"`
	FlowID         string            `json:"flow_id"         validate:"required"`
	CurrentNodeID  string            `json:"current_node_id"`
	Variables      map[string]string `json:"variables"`
	State          SessionState      `json:"state"`
	IsActive       bool              `json:"is_active"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	ResumeAt       *time.Time        `json:"resume_at,omitempty"` // Set while awaiting a timer
	StateVersion   int               `json:"state_version"`
	StartedAt      time.Time         `json:"started_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	StartedBy      string            `json:"started_by,omitempty"`
	EndedAt        *time.Time        `json:"ended_at,omitempty"`
}

// attemptPrefix namespaces per-node retry counters inside the variable bag so
// they survive suspension without a dedicated column.
const attemptPrefix = "__attempts_"

// AttemptCount returns the stored retry counter for a node.
func (s *Session) AttemptCount(nodeID string) int {
	n, err := strconv.Atoi(s.Variables[attemptPrefix+nodeID])
	if err != nil {
		return 0
	}

	return n
}

// SetAttemptCount stores the retry counter for a node.
func (s *Session) SetAttemptCount(nodeID string, count int) {
	if s.Variables == nil {
		s.Variables = make(map[string]string)
	}

	s.Variables[attemptPrefix+nodeID] = strconv.Itoa(count)
}

// ClearAttemptCount removes the retry counter once a node is passed.
func (s *Session) ClearAttemptCount(nodeID string) {
	delete(s.Variables, attemptPrefix+nodeID)
}

// SetVariable writes a variable, allocating the bag on first use.
func (s *Session) SetVariable(name, value string) {
	if s.Variables == nil {
		s.Variables = make(map[string]string)
	}

	s.Variables[name] = value
}
