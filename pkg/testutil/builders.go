// Package testutil provides test data builders for flows, graphs and sessions.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/zapdesk/flowengine/pkg/models"
)

// CreateTestFlow creates an active, published flow with default values that
// can be overridden.
func CreateTestFlow(overrides ...func(*models.Flow)) *models.Flow {
	flow := &models.Flow{
		ID:               uuid.Must(uuid.NewV7()).String(),
		OrganizationID:   "org-1",
		Name:             "Test Flow",
		TriggerEnabled:   true,
		TriggerKeywords:  []string{"hello"},
		TriggerMatchMode: models.TriggerMatchExact,
		IsActive:         true,
		IsDraft:          false,
		Version:          1,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}

	for _, override := range overrides {
		override(flow)
	}

	return flow
}

// WithGraph sets the flow's nodes and edges.
func WithGraph(nodes []*models.Node, edges []*models.Edge) func(*models.Flow) {
	return func(f *models.Flow) {
		f.Nodes = nodes
		f.Edges = edges
	}
}

// WithKeywords sets the trigger keywords and match mode.
func WithKeywords(mode models.TriggerMatchMode, keywords ...string) func(*models.Flow) {
	return func(f *models.Flow) {
		f.TriggerKeywords = keywords
		f.TriggerMatchMode = mode
	}
}

// WithConnections restricts the flow to the given connection ids.
func WithConnections(connectionIDs ...string) func(*models.Flow) {
	return func(f *models.Flow) {
		f.ConnectionIDs = connectionIDs
	}
}

// AsDraft marks the flow as an inactive draft.
func AsDraft() func(*models.Flow) {
	return func(f *models.Flow) {
		f.IsActive = false
		f.IsDraft = true
	}
}

// StartNode creates the entry node of a graph.
func StartNode() *models.Node {
	return &models.Node{
		NodeID:  models.StartNodeID,
		Type:    models.NodeTypeStart,
		Name:    "Start",
		Content: models.StartContent{},
	}
}

// EndNode creates a terminal node.
func EndNode(nodeID string) *models.Node {
	return &models.Node{
		NodeID:  nodeID,
		Type:    models.NodeTypeEnd,
		Name:    "End",
		Content: models.EndContent{},
	}
}

// MessageNode creates a message node sending the given text.
func MessageNode(nodeID, text string) *models.Node {
	return &models.Node{
		NodeID:  nodeID,
		Type:    models.NodeTypeMessage,
		Name:    "Message",
		Content: &models.MessageContent{Text: text},
	}
}

// MenuNode creates a menu node with label/value option pairs.
func MenuNode(nodeID, prompt string, options ...models.MenuOption) *models.Node {
	return &models.Node{
		NodeID:  nodeID,
		Type:    models.NodeTypeMenu,
		Name:    "Menu",
		Content: &models.MenuContent{Prompt: prompt, Options: options},
	}
}

// InputNode creates an input node storing the reply in variable.
func InputNode(nodeID, prompt, variable string, validation models.ValidationKind) *models.Node {
	return &models.Node{
		NodeID: nodeID,
		Type:   models.NodeTypeInput,
		Name:   "Input",
		Content: &models.InputContent{
			Prompt:     prompt,
			Variable:   variable,
			Validation: validation,
		},
	}
}

// ConditionNode creates a condition node with the given rules joined by and.
func ConditionNode(nodeID string, rules ...models.ConditionRule) *models.Node {
	return &models.Node{
		NodeID: nodeID,
		Type:   models.NodeTypeCondition,
		Name:   "Condition",
		Content: &models.ConditionContent{
			Rules:      rules,
			Combinator: models.CombinatorAnd,
		},
	}
}

// ActionNode creates an action node with the given content.
func ActionNode(nodeID string, content *models.ActionContent) *models.Node {
	return &models.Node{
		NodeID:  nodeID,
		Type:    models.NodeTypeAction,
		Name:    "Action",
		Content: content,
	}
}

// TransferNode creates a transfer node targeting a department.
func TransferNode(nodeID, targetID string) *models.Node {
	return &models.Node{
		NodeID: nodeID,
		Type:   models.NodeTypeTransfer,
		Name:   "Transfer",
		Content: &models.TransferContent{
			TargetKind: models.TransferDepartment,
			TargetID:   targetID,
		},
	}
}

// DelayNode creates a delay node.
func DelayNode(nodeID string, value int, unit models.DelayUnit) *models.Node {
	return &models.Node{
		NodeID:  nodeID,
		Type:    models.NodeTypeDelay,
		Name:    "Delay",
		Content: &models.DelayContent{Value: value, Unit: unit},
	}
}

// WebhookNode creates a webhook node with the given content.
func WebhookNode(nodeID string, content *models.WebhookContent) *models.Node {
	return &models.Node{
		NodeID:  nodeID,
		Type:    models.NodeTypeWebhook,
		Name:    "Webhook",
		Content: content,
	}
}

// AINode creates an ai_response node.
func AINode(nodeID string, content *models.AIResponseContent) *models.Node {
	return &models.Node{
		NodeID:  nodeID,
		Type:    models.NodeTypeAIResponse,
		Name:    "AI Response",
		Content: content,
	}
}

// Connect creates an edge between two nodes.
func Connect(source, target string) *models.Edge {
	return &models.Edge{
		EdgeID:       source + "->" + target,
		SourceNodeID: source,
		TargetNodeID: target,
	}
}

// ConnectHandle creates an edge with a source handle for branching nodes.
func ConnectHandle(source, handle, target string) *models.Edge {
	return &models.Edge{
		EdgeID:       source + ":" + handle + "->" + target,
		SourceNodeID: source,
		TargetNodeID: target,
		SourceHandle: handle,
	}
}

// LinearFlow creates a flow whose graph runs start -> nodes... in order,
// ending at the last node.
func LinearFlow(nodes ...*models.Node) *models.Flow {
	all := append([]*models.Node{StartNode()}, nodes...)

	edges := make([]*models.Edge, 0, len(all)-1)
	for i := 0; i < len(all)-1; i++ {
		edges = append(edges, Connect(all[i].NodeID, all[i+1].NodeID))
	}

	return CreateTestFlow(WithGraph(all, edges))
}

// CreateTestSession creates a running session bound to the given flow.
func CreateTestSession(flow *models.Flow, overrides ...func(*models.Session)) *models.Session {
	session := &models.Session{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: "conv-1",
		FlowID:         flow.ID,
		CurrentNodeID:  models.StartNodeID,
		Variables:      map[string]string{},
		State:          models.SessionRunning,
		IsActive:       true,
		StateVersion:   1,
		StartedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
		StartedBy:      "trigger",
	}

	for _, override := range overrides {
		override(session)
	}

	return session
}

// AwaitingAt puts the session in awaiting_input at the given node.
func AwaitingAt(nodeID string) func(*models.Session) {
	return func(s *models.Session) {
		s.State = models.SessionAwaitingInput
		s.CurrentNodeID = nodeID
	}
}

// DelayedAt puts the session in awaiting_timer at the given node with a
// resume time.
func DelayedAt(nodeID string, resumeAt time.Time) func(*models.Session) {
	return func(s *models.Session) {
		s.State = models.SessionAwaitingTimer
		s.CurrentNodeID = nodeID
		s.ResumeAt = &resumeAt
	}
}
