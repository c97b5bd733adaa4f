package nodes

import (
	"context"
	"fmt"

	"github.com/zapdesk/flowengine/pkg/interpolate"
	"github.com/zapdesk/flowengine/pkg/models"
)

// ActionEvaluator performs a CRM-side effect and advances, except for
// close_conversation which terminates the session.
type ActionEvaluator struct{}

func (ActionEvaluator) Type() models.NodeType { return models.NodeTypeAction }

func (ActionEvaluator) Evaluate(_ context.Context, req Request, _ Deps) (Result, error) {
	content, ok := req.Node.Content.(*models.ActionContent)
	if !ok {
		return Result{}, fmt.Errorf("node %s: unexpected content type %T", req.Node.NodeID, req.Node.Content)
	}

	session := req.Session
	vars := session.Variables

	switch content.ActionType {
	case models.ActionSetVariable:
		session.SetVariable(content.Variable, interpolate.Interpolate(content.Value, vars))

		return Result{Decision: advanceOrComplete(req.Flow, req.Node.NodeID)}, nil

	case models.ActionAddTag, models.ActionRemoveTag:
		effect := models.Effect{
			Type:      models.EffectSetTag,
			Tag:       interpolate.Interpolate(content.Tag, vars),
			RemoveTag: content.ActionType == models.ActionRemoveTag,
		}

		return Result{
			Effects:  []models.Effect{effect},
			Decision: advanceOrComplete(req.Flow, req.Node.NodeID),
		}, nil

	case models.ActionSendEmail:
		effect := models.Effect{
			Type:         models.EffectSendEmail,
			EmailTo:      interpolate.Interpolate(content.EmailTo, vars),
			EmailSubject: interpolate.Interpolate(content.EmailSubject, vars),
			EmailBody:    interpolate.Interpolate(content.EmailBody, vars),
		}

		return Result{
			Effects:  []models.Effect{effect},
			Decision: advanceOrComplete(req.Flow, req.Node.NodeID),
		}, nil

	case models.ActionNotify, models.ActionNotifyExternal:
		effect := models.Effect{
			Type:           models.EffectNotify,
			NotifyTarget:   content.NotifyTarget,
			NotifyMessage:  interpolate.Interpolate(content.NotifyMessage, vars),
			NotifyExternal: content.ActionType == models.ActionNotifyExternal,
		}

		return Result{
			Effects:  []models.Effect{effect},
			Decision: advanceOrComplete(req.Flow, req.Node.NodeID),
		}, nil

	case models.ActionCreateTask:
		effect := models.Effect{
			Type:            models.EffectCreateTask,
			TaskTitle:       interpolate.Interpolate(content.TaskTitle, vars),
			TaskDescription: interpolate.Interpolate(content.TaskDescription, vars),
		}

		return Result{
			Effects:  []models.Effect{effect},
			Decision: advanceOrComplete(req.Flow, req.Node.NodeID),
		}, nil

	case models.ActionCloseConversation:
		return Result{
			Effects:  []models.Effect{{Type: models.EffectCloseConv}},
			Decision: models.Complete(),
		}, nil

	default:
		return Result{}, fmt.Errorf("node %s: unknown action type %q", req.Node.NodeID, content.ActionType)
	}
}
