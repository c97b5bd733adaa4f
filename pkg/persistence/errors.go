// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFlowNotFound indicates a flow was not found, including
	// cross-tenant lookups which are indistinguishable from absence.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrVersionNotFound indicates no snapshot exists for the requested
	// flow version.
	ErrVersionNotFound = errors.New("flow version not found")

	// ErrSessionNotFound indicates no session matched the lookup.
	ErrSessionNotFound = errors.New("session not found")

	// ErrActiveSessionExists indicates the conversation already has an
	// active session.
	ErrActiveSessionExists = errors.New("conversation already has an active session")

	// ErrSessionConflict indicates a concurrent writer moved the session's
	// state version between read and write.
	ErrSessionConflict = errors.New("session was modified concurrently")
)

// FlowError wraps flow-related storage errors with operation context.
type FlowError struct {
	Op     string // Operation being performed (e.g. "FlowByID", "ReplaceCanvas")
	FlowID string
	Err    error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s failed for flow %s: %v", e.Op, e.FlowID, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFlowError creates a flow storage error with context.
func NewFlowError(op, flowID string, err error) *FlowError {
	return &FlowError{Op: op, FlowID: flowID, Err: err}
}

// SessionError wraps session-related storage errors with operation context.
type SessionError struct {
	Op             string
	ConversationID string
	Err            error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s failed for conversation %s: %v", e.Op, e.ConversationID, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func (e *SessionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewSessionError creates a session storage error with context.
func NewSessionError(op, conversationID string, err error) *SessionError {
	return &SessionError{Op: op, ConversationID: conversationID, Err: err}
}

// IsFlowNotFound checks if an error indicates a missing flow.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsVersionNotFound checks if an error indicates a missing snapshot.
func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

// IsSessionNotFound checks if an error indicates a missing session.
func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// IsSessionConflict checks if an error indicates a lost optimistic write.
func IsSessionConflict(err error) bool {
	return errors.Is(err, ErrSessionConflict)
}

// IsActiveSessionExists checks if an error indicates a uniqueness violation
// on active sessions.
func IsActiveSessionExists(err error) bool {
	return errors.Is(err, ErrActiveSessionExists)
}
