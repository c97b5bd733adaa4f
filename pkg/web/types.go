package web

import (
	"github.com/zapdesk/flowengine/pkg/models"
)

// CreateFlowRequest is the payload for creating a flow definition.
type CreateFlowRequest struct {
	Name             string   `json:"name"               validate:"required,min=3"`
	TriggerEnabled   bool     `json:"trigger_enabled"`
	TriggerKeywords  []string `json:"trigger_keywords"`
	TriggerMatchMode string   `json:"trigger_match_mode" validate:"omitempty,oneof=exact contains regex"`
	ConnectionIDs    []string `json:"connection_ids"`
}

// UpdateFlowRequest is the partial-update payload for a flow definition.
type UpdateFlowRequest struct {
	Name             *string  `json:"name,omitempty"               validate:"omitempty,min=3"`
	TriggerEnabled   *bool    `json:"trigger_enabled,omitempty"`
	TriggerKeywords  []string `json:"trigger_keywords,omitempty"`
	TriggerMatchMode *string  `json:"trigger_match_mode,omitempty" validate:"omitempty,oneof=exact contains regex"`
	ConnectionIDs    []string `json:"connection_ids,omitempty"`
	IsActive         *bool    `json:"is_active,omitempty"`
}

// SaveCanvasRequest replaces a flow's graph.
type SaveCanvasRequest struct {
	Nodes []*models.Node `json:"nodes" validate:"required,min=1"`
	Edges []*models.Edge `json:"edges"`
}

// SaveCanvasResponse reports the flow version after a canvas replace.
type SaveCanvasResponse struct {
	Version int `json:"version"`
}

// CanvasResponse is the current graph of a flow.
type CanvasResponse struct {
	Nodes []*models.Node `json:"nodes"`
	Edges []*models.Edge `json:"edges"`
}

// InboundMessageRequest is one message arriving from a channel connection.
type InboundMessageRequest struct {
	ConnectionID   string `json:"connection_id"   validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required"`
	Text           string `json:"text"`
}

// StartSessionRequest starts a flow manually for a conversation.
type StartSessionRequest struct {
	FlowID         string `json:"flow_id"         validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required"`
	StartedBy      string `json:"started_by"      validate:"required"`
}

// CancelSessionRequest cancels a conversation's active session.
type CancelSessionRequest struct {
	RequestedBy string `json:"requested_by" validate:"required"`
}
