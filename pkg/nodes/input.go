package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/zapdesk/flowengine/pkg/interpolate"
	"github.com/zapdesk/flowengine/pkg/models"
)

const defaultValidationError = "Resposta inválida. Por favor, tente novamente."

// InputEvaluator prompts for free text, validates the reply per the
// configured kind and stores it in the session variable bag. Invalid replies
// are re-prompted without an attempt cap; optional inputs accept an empty
// reply and store the empty string.
type InputEvaluator struct{}

func (InputEvaluator) Type() models.NodeType { return models.NodeTypeInput }

func (InputEvaluator) Evaluate(_ context.Context, req Request, _ Deps) (Result, error) {
	content, ok := req.Node.Content.(*models.InputContent)
	if !ok {
		return Result{}, fmt.Errorf("node %s: unexpected content type %T", req.Node.NodeID, req.Node.Content)
	}

	session := req.Session

	if !req.Input.HasReply {
		prompt := interpolate.Interpolate(content.Prompt, session.Variables)

		return Result{
			Effects:  []models.Effect{{Type: models.EffectSendMessage, Text: prompt}},
			Decision: models.AwaitInput(models.AwaitText),
		}, nil
	}

	reply := strings.TrimSpace(req.Input.Reply)

	if reply == "" && !content.Required {
		session.SetVariable(content.Variable, "")

		return Result{Decision: advanceOrComplete(req.Flow, req.Node.NodeID)}, nil
	}

	if (reply == "" && content.Required) || !ValidateReply(content.Validation, reply) {
		errMsg := content.ErrorMessage
		if errMsg == "" {
			errMsg = defaultValidationError
		}

		return Result{
			Effects: []models.Effect{{
				Type: models.EffectSendMessage,
				Text: interpolate.Interpolate(errMsg, session.Variables),
			}},
			Decision: models.AwaitInput(models.AwaitText),
		}, nil
	}

	session.SetVariable(content.Variable, reply)

	return Result{Decision: advanceOrComplete(req.Flow, req.Node.NodeID)}, nil
}
