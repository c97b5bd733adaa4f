package models

import "time"

// FlowVersion is an immutable snapshot of a flow's nodes and edges, written
// before every destructive canvas replace. Snapshots are keyed by the flow's
// pre-save version and are never mutated.
type FlowVersion struct {
	FlowID    string    `json:"flow_id"`
	Version   int       `json:"version"`
	Nodes     []*Node   `json:"nodes"`
	Edges     []*Edge   `json:"edges"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
