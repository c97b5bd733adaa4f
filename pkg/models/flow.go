// Package models defines the core domain models for conversation flow automation.
package models

import "time"

// TriggerMatchMode controls how inbound text is compared against trigger keywords.
type TriggerMatchMode string

const (
	TriggerMatchExact    TriggerMatchMode = "exact"    // Case-insensitive full match
	TriggerMatchContains TriggerMatchMode = "contains" // Case-insensitive substring match
	TriggerMatchRegex    TriggerMatchMode = "regex"    // Keyword treated as a pattern
)

// Flow represents a versioned automation graph owned by an organization.
type Flow struct {
	ID               string           `json:"id"`
	OrganizationID   string           `json:"organization_id"   validate:"required"`
	Name             string           `json:"name"              validate:"required,min=3"`
	TriggerEnabled   bool             `json:"trigger_enabled"`
	TriggerKeywords  []string         `json:"trigger_keywords"`
	TriggerMatchMode TriggerMatchMode `json:"trigger_match_mode"`
	ConnectionIDs    []string         `json:"connection_ids"` // Empty means all connections
	IsActive         bool             `json:"is_active"`
	IsDraft          bool             `json:"is_draft"`
	Version          int              `json:"version"`
	Nodes            []*Node          `json:"nodes,omitempty"`
	Edges            []*Edge          `json:"edges,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	DeletedAt        *time.Time       `json:"deleted_at,omitempty"`
}

// AppliesToConnection reports whether the flow can start for the given
// connection. An empty ConnectionIDs list means the flow applies to all
// connections of the organization.
func (f *Flow) AppliesToConnection(connectionID string) bool {
	if len(f.ConnectionIDs) == 0 {
		return true
	}

	for _, id := range f.ConnectionIDs {
		if id == connectionID {
			return true
		}
	}

	return false
}

// NodeByID returns the node with the given graph-local id, if present.
func (f *Flow) NodeByID(nodeID string) (*Node, bool) {
	for _, n := range f.Nodes {
		if n.NodeID == nodeID {
			return n, true
		}
	}

	return nil, false
}

// EdgesFrom returns the outgoing edges of a node in stored order.
func (f *Flow) EdgesFrom(nodeID string) []*Edge {
	var out []*Edge

	for _, e := range f.Edges {
		if e.SourceNodeID == nodeID {
			out = append(out, e)
		}
	}

	return out
}
