package models

// Edge handle labels used by condition branching. Menu nodes use the matched
// option value as the handle instead.
const (
	EdgeHandleYes = "yes"
	EdgeHandleNo  = "no"
)

// Edge is a directed transition between two nodes of a flow. Condition and
// menu nodes disambiguate multiple outgoing edges by SourceHandle; all other
// node types follow their first outgoing edge.
type Edge struct {
	FlowID       string `json:"flow_id"`
	EdgeID       string `json:"edge_id"        validate:"required"`
	SourceNodeID string `json:"source_node_id" validate:"required"`
	TargetNodeID string `json:"target_node_id" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
	Label        string `json:"label,omitempty"`
	EdgeType     string `json:"edge_type,omitempty"`
}
