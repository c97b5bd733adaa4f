package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/zapdesk/flowengine/pkg/interpolate"
	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/protocol"
)

// ErrorHandle is the source handle of the edge taken when a node's external
// call fails and the node has a wired error path.
const ErrorHandle = "error"

// DefaultAITimeout bounds a single completion call. Provider calls are not
// assumed idempotent, so there is no retry.
const DefaultAITimeout = 30 * time.Second

// DefaultHistoryTurns is how many prior exchanges are included when the node
// requests conversation history.
const DefaultHistoryTurns = 10

// AIResponseEvaluator asks the AI provider for a reply, stores it in the
// configured variable and sends it to the conversation. Provider failures
// take the error edge when wired, else the session fails.
type AIResponseEvaluator struct{}

func (AIResponseEvaluator) Type() models.NodeType { return models.NodeTypeAIResponse }

func (AIResponseEvaluator) Evaluate(ctx context.Context, req Request, deps Deps) (Result, error) {
	content, ok := req.Node.Content.(*models.AIResponseContent)
	if !ok {
		return Result{}, fmt.Errorf("node %s: unexpected content type %T", req.Node.NodeID, req.Node.Content)
	}

	if deps.AI == nil {
		return aiFailure(req, deps, "ai provider not configured"), nil
	}

	session := req.Session

	completion := protocol.CompletionRequest{
		SystemPrompt: interpolate.Interpolate(content.SystemPrompt, session.Variables),
		UserMessage:  req.Input.Reply,
		Model:        content.Model,
		Temperature:  content.Temperature,
	}

	callCtx, cancel := context.WithTimeout(ctx, DefaultAITimeout)
	defer cancel()

	if content.IncludeHistory && deps.History != nil {
		history, err := deps.History.RecentTurns(callCtx, session.ConversationID, DefaultHistoryTurns)
		if err != nil {
			deps.Logger.Warn("Failed to load conversation history",
				"conversation_id", session.ConversationID, "error", err)
		} else {
			completion.History = history
		}
	}

	reply, err := deps.AI.Complete(callCtx, completion)
	if err != nil {
		deps.Logger.Error("AI completion failed",
			"node_id", req.Node.NodeID, "model", content.Model, "error", err)

		return aiFailure(req, deps, fmt.Sprintf("ai provider error: %v", err)), nil
	}

	if content.SaveToVariable != "" {
		session.SetVariable(content.SaveToVariable, reply)
	}

	return Result{
		Effects:  []models.Effect{{Type: models.EffectSendMessage, Text: reply}},
		Decision: advanceOrComplete(req.Flow, req.Node.NodeID),
	}, nil
}

func aiFailure(req Request, _ Deps, reason string) Result {
	if decision, ok := advanceByHandle(req.Flow, req.Node.NodeID, ErrorHandle); ok {
		return Result{Decision: decision}
	}

	return Result{Decision: models.Fail(reason)}
}
