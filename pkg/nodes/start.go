package nodes

import (
	"context"

	"github.com/zapdesk/flowengine/pkg/models"
)

// StartEvaluator advances unconditionally to the entry node's single
// outgoing edge.
type StartEvaluator struct{}

func (StartEvaluator) Type() models.NodeType { return models.NodeTypeStart }

func (StartEvaluator) Evaluate(_ context.Context, req Request, _ Deps) (Result, error) {
	return Result{Decision: advanceOrComplete(req.Flow, req.Node.NodeID)}, nil
}
