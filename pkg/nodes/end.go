package nodes

import (
	"context"

	"github.com/zapdesk/flowengine/pkg/models"
)

// EndEvaluator terminates the session.
type EndEvaluator struct{}

func (EndEvaluator) Type() models.NodeType { return models.NodeTypeEnd }

func (EndEvaluator) Evaluate(context.Context, Request, Deps) (Result, error) {
	return Result{Decision: models.Complete()}, nil
}
