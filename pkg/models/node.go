package models

import (
	"encoding/json"
	"fmt"
)

// NodeType identifies the evaluator used for a node.
type NodeType string

const (
	NodeTypeStart      NodeType = "start"
	NodeTypeMessage    NodeType = "message"
	NodeTypeMenu       NodeType = "menu"
	NodeTypeInput      NodeType = "input"
	NodeTypeCondition  NodeType = "condition"
	NodeTypeAction     NodeType = "action"
	NodeTypeTransfer   NodeType = "transfer"
	NodeTypeAIResponse NodeType = "ai_response"
	NodeTypeDelay      NodeType = "delay"
	NodeTypeWebhook    NodeType = "webhook"
	NodeTypeEnd        NodeType = "end"
)

// StartNodeID is the reserved graph-local id of the entry node. Every flow
// has exactly one node with this id and type NodeTypeStart.
const StartNodeID = "start"

// Position is the canvas placement of a node. Opaque to the engine.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node represents a typed step in a flow graph. Content carries the
// type-specific payload and is non-nil for every type except start and end.
type Node struct {
	FlowID   string      `json:"flow_id"`
	NodeID   string      `json:"node_id"  validate:"required"`
	Type     NodeType    `json:"node_type" validate:"required"`
	Name     string      `json:"name"`
	Position Position    `json:"position"`
	Content  NodeContent `json:"content,omitempty"`
}

// nodeJSON is the wire form of Node; content is decoded per Type.
type nodeJSON struct {
	FlowID   string          `json:"flow_id"`
	NodeID   string          `json:"node_id"`
	Type     NodeType        `json:"node_type"`
	Name     string          `json:"name"`
	Position Position        `json:"position"`
	Content  json.RawMessage `json:"content,omitempty"`
}

// UnmarshalJSON decodes a node, dispatching the content payload on node_type.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	n.FlowID = raw.FlowID
	n.NodeID = raw.NodeID
	n.Type = raw.Type
	n.Name = raw.Name
	n.Position = raw.Position

	content, err := UnmarshalContent(raw.Type, raw.Content)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.NodeID, err)
	}

	n.Content = content

	return nil
}

// IsTerminal reports whether the node ends a flow unconditionally.
func (n *Node) IsTerminal() bool {
	return n.Type == NodeTypeEnd
}
