package nodes

import (
	"context"
	"fmt"

	"github.com/zapdesk/flowengine/pkg/interpolate"
	"github.com/zapdesk/flowengine/pkg/models"
)

// TransferEvaluator hands the conversation to a human target, optionally
// sending a transfer message, and either terminates or advances depending on
// the end-flow flag.
type TransferEvaluator struct{}

func (TransferEvaluator) Type() models.NodeType { return models.NodeTypeTransfer }

func (TransferEvaluator) Evaluate(_ context.Context, req Request, _ Deps) (Result, error) {
	content, ok := req.Node.Content.(*models.TransferContent)
	if !ok {
		return Result{}, fmt.Errorf("node %s: unexpected content type %T", req.Node.NodeID, req.Node.Content)
	}

	effects := []models.Effect{{
		Type:         models.EffectTransfer,
		TransferKind: content.TargetKind,
		TransferID:   content.TargetID,
	}}

	if content.Message != "" {
		effects = append(effects, models.Effect{
			Type: models.EffectSendMessage,
			Text: interpolate.Interpolate(content.Message, req.Session.Variables),
		})
	}

	if content.EndFlow {
		return Result{Effects: effects, Decision: models.Complete()}, nil
	}

	return Result{Effects: effects, Decision: advanceOrComplete(req.Flow, req.Node.NodeID)}, nil
}
