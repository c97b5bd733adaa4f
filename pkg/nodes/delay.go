package nodes

import (
	"context"
	"fmt"

	"github.com/zapdesk/flowengine/pkg/models"
)

// DelayEvaluator suspends the session until a durable timer fires, then
// advances. The engine verifies the session still points at this node before
// resuming, which makes duplicate timer deliveries no-ops.
type DelayEvaluator struct{}

func (DelayEvaluator) Type() models.NodeType { return models.NodeTypeDelay }

func (DelayEvaluator) Evaluate(_ context.Context, req Request, _ Deps) (Result, error) {
	content, ok := req.Node.Content.(*models.DelayContent)
	if !ok {
		return Result{}, fmt.Errorf("node %s: unexpected content type %T", req.Node.NodeID, req.Node.Content)
	}

	if req.Input.TimerFired {
		return Result{Decision: advanceOrComplete(req.Flow, req.Node.NodeID)}, nil
	}

	var effects []models.Effect

	if content.Typing {
		effects = append(effects, models.Effect{Type: models.EffectTyping})
	}

	return Result{
		Effects:  effects,
		Decision: models.Suspend(req.Input.Now.Add(content.Duration())),
	}, nil
}
