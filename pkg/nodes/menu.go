package nodes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/zapdesk/flowengine/pkg/interpolate"
	"github.com/zapdesk/flowengine/pkg/models"
)

// FallbackHandle is the source handle of the edge taken when menu attempts
// are exhausted.
const FallbackHandle = "fallback"

const defaultInvalidMessage = "Opção inválida. Por favor, escolha uma das opções do menu."

// MenuEvaluator prompts with an option list and routes on the reply. The
// matched option's value selects the outgoing edge by handle. Invalid
// replies are re-prompted up to the attempt cap, then the fallback edge is
// taken if wired, else the session terminates.
type MenuEvaluator struct{}

func (MenuEvaluator) Type() models.NodeType { return models.NodeTypeMenu }

func (MenuEvaluator) Evaluate(_ context.Context, req Request, _ Deps) (Result, error) {
	content, ok := req.Node.Content.(*models.MenuContent)
	if !ok {
		return Result{}, fmt.Errorf("node %s: unexpected content type %T", req.Node.NodeID, req.Node.Content)
	}

	session := req.Session

	if !req.Input.HasReply {
		prompt := interpolate.Interpolate(content.Prompt, session.Variables)

		return Result{
			Effects:  []models.Effect{{Type: models.EffectSendMessage, Text: prompt}},
			Decision: models.AwaitInput(models.AwaitMenu),
		}, nil
	}

	if option, found := matchOption(content.Options, req.Input.Reply); found {
		session.ClearAttemptCount(req.Node.NodeID)

		if decision, ok := advanceByHandle(req.Flow, req.Node.NodeID, option.Value); ok {
			return Result{Decision: decision}, nil
		}

		// Matched option without a wired edge ends the flow.
		return Result{Decision: advanceOrComplete(req.Flow, req.Node.NodeID)}, nil
	}

	attempts := session.AttemptCount(req.Node.NodeID) + 1
	session.SetAttemptCount(req.Node.NodeID, attempts)

	if attempts >= content.Attempts() {
		session.ClearAttemptCount(req.Node.NodeID)

		if decision, ok := advanceByHandle(req.Flow, req.Node.NodeID, FallbackHandle); ok {
			return Result{Decision: decision}, nil
		}

		return Result{Decision: models.Complete()}, nil
	}

	invalid := content.InvalidMessage
	if invalid == "" {
		invalid = defaultInvalidMessage
	}

	return Result{
		Effects: []models.Effect{{
			Type: models.EffectSendMessage,
			Text: interpolate.Interpolate(invalid, session.Variables),
		}},
		Decision: models.AwaitInput(models.AwaitMenu),
	}, nil
}

// matchOption resolves a reply to an option: exact value match first, then
// label match, then 1-based numeric position. All case-insensitive.
func matchOption(options []models.MenuOption, reply string) (models.MenuOption, bool) {
	reply = strings.TrimSpace(reply)

	for _, opt := range options {
		if strings.EqualFold(opt.Value, reply) {
			return opt, true
		}
	}

	for _, opt := range options {
		if strings.EqualFold(opt.Label, reply) {
			return opt, true
		}
	}

	if idx, err := strconv.Atoi(reply); err == nil && idx >= 1 && idx <= len(options) {
		return options[idx-1], true
	}

	return models.MenuOption{}, false
}
