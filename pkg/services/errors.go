// Package services provides the application operations behind the HTTP
// surface: flow CRUD, canvas editing with versioning, and session control.
package services

import (
	"errors"
	"fmt"

	"github.com/zapdesk/flowengine/pkg/persistence"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest     = errors.New("invalid request")
	ErrFlowNameRequired   = errors.New("flow name is required")
	ErrNoStartNode        = errors.New("canvas must have exactly one start node")
	ErrStartNodeIncoming  = errors.New("start node cannot have incoming edges")
	ErrDuplicateNodeID    = errors.New("canvas contains duplicate node ids")
	ErrDanglingEdge       = errors.New("edge references a node not on the canvas")
	ErrInvalidNodeContent = errors.New("invalid node content")

	// Not found (404).
	ErrFlowNotFound    = persistence.ErrFlowNotFound
	ErrVersionNotFound = persistence.ErrVersionNotFound
	ErrSessionNotFound = persistence.ErrSessionNotFound

	// Conflicts (409).
	ErrActiveSessionExists = persistence.ErrActiveSessionExists
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should surface as HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrFlowNameRequired) ||
		errors.Is(err, ErrNoStartNode) ||
		errors.Is(err, ErrStartNodeIncoming) ||
		errors.Is(err, ErrDuplicateNodeID) ||
		errors.Is(err, ErrDanglingEdge) ||
		errors.Is(err, ErrInvalidNodeContent)
}

// IsNotFoundError checks if an error should surface as HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrFlowNotFound) ||
		errors.Is(err, ErrVersionNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}

// IsConflictError checks if an error should surface as HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrActiveSessionExists)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
