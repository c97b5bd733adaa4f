// Package nodes implements one evaluator per flow node type. An evaluator
// consumes the node content plus the session state and produces outbound
// effects and a control-flow decision; the engine applies both.
package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/protocol"
)

// Input carries the external stimulus of one evaluation step. Exactly one of
// the fields is meaningful per event: a user reply when resuming an awaiting
// session, or a timer fire when resuming a delayed one.
type Input struct {
	Reply      string
	HasReply   bool
	TimerFired bool
	Now        time.Time
}

// Deps are the collaborators evaluators may call during a step. Only the
// ai_response and webhook evaluators perform blocking calls; both are bounded
// by timeouts.
type Deps struct {
	AI       protocol.AIProvider
	History  protocol.HistoryProvider
	Webhooks protocol.WebhookCaller
	Logger   *slog.Logger
}

// Request is one node evaluation against a session.
type Request struct {
	Flow    *models.Flow
	Node    *models.Node
	Session *models.Session
	Input   Input
}

// Result is the outcome of a node evaluation.
type Result struct {
	Effects  []models.Effect
	Decision models.Decision
}

// Evaluator evaluates one node type.
type Evaluator interface {
	Type() models.NodeType
	Evaluate(ctx context.Context, req Request, deps Deps) (Result, error)
}

// Registry dispatches evaluation by node type.
type Registry struct {
	deps       Deps
	evaluators map[models.NodeType]Evaluator
}

// NewRegistry creates a registry with all built-in evaluators registered.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{
		deps:       deps,
		evaluators: make(map[models.NodeType]Evaluator),
	}

	r.Register(&StartEvaluator{})
	r.Register(&MessageEvaluator{})
	r.Register(&MenuEvaluator{})
	r.Register(&InputEvaluator{})
	r.Register(&ConditionEvaluator{})
	r.Register(&ActionEvaluator{})
	r.Register(&TransferEvaluator{})
	r.Register(&AIResponseEvaluator{})
	r.Register(&DelayEvaluator{})
	r.Register(&WebhookEvaluator{})
	r.Register(&EndEvaluator{})

	return r
}

// Register adds or replaces the evaluator for a node type.
func (r *Registry) Register(e Evaluator) {
	r.evaluators[e.Type()] = e
}

// Evaluate runs the evaluator registered for the node's type.
func (r *Registry) Evaluate(ctx context.Context, req Request) (Result, error) {
	evaluator, ok := r.evaluators[req.Node.Type]
	if !ok {
		return Result{}, fmt.Errorf("no evaluator registered for node type %q", req.Node.Type)
	}

	return evaluator.Evaluate(ctx, req, r.deps)
}

// advanceOrComplete follows the node's first outgoing edge, completing the
// session when the node has none.
func advanceOrComplete(flow *models.Flow, nodeID string) models.Decision {
	edges := flow.EdgesFrom(nodeID)
	if len(edges) == 0 {
		return models.Complete()
	}

	return models.Advance(edges[0].TargetNodeID)
}

// advanceByHandle follows the outgoing edge whose source handle (or label)
// equals handle. The second return is false when no such edge exists.
func advanceByHandle(flow *models.Flow, nodeID, handle string) (models.Decision, bool) {
	for _, e := range flow.EdgesFrom(nodeID) {
		if e.SourceHandle == handle || (e.SourceHandle == "" && e.Label == handle) {
			return models.Advance(e.TargetNodeID), true
		}
	}

	return models.Decision{}, false
}
