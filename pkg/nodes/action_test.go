package nodes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/testutil"
)

func evalAction(t *testing.T, content *models.ActionContent, session *models.Session) Result {
	t.Helper()

	node := testutil.ActionNode("action", content)
	flow := testutil.LinearFlow(node, testutil.EndNode("end"))

	if session == nil {
		session = testutil.CreateTestSession(flow)
	}

	result, err := ActionEvaluator{}.Evaluate(context.Background(),
		Request{Flow: flow, Node: node, Session: session}, Deps{})
	require.NoError(t, err)

	return result
}

func TestActionSetVariableInterpolates(t *testing.T) {
	flow := testutil.LinearFlow(
		testutil.ActionNode("action", &models.ActionContent{
			ActionType: models.ActionSetVariable,
			Variable:   "greeting",
			Value:      "Olá {{name}}",
		}),
		testutil.EndNode("end"),
	)
	session := testutil.CreateTestSession(flow)
	session.SetVariable("name", "Ana")

	node, _ := flow.NodeByID("action")

	result, err := ActionEvaluator{}.Evaluate(context.Background(),
		Request{Flow: flow, Node: node, Session: session}, Deps{})
	require.NoError(t, err)

	assert.Empty(t, result.Effects, "set_variable produces no outbound effect")
	assert.Equal(t, "Olá Ana", session.Variables["greeting"])
	assert.Equal(t, models.DecisionAdvance, result.Decision.Kind)
}

func TestActionAddAndRemoveTag(t *testing.T) {
	result := evalAction(t, &models.ActionContent{ActionType: models.ActionAddTag, Tag: "vip"}, nil)
	require.Len(t, result.Effects, 1)
	assert.Equal(t, models.EffectSetTag, result.Effects[0].Type)
	assert.Equal(t, "vip", result.Effects[0].Tag)
	assert.False(t, result.Effects[0].RemoveTag)

	result = evalAction(t, &models.ActionContent{ActionType: models.ActionRemoveTag, Tag: "vip"}, nil)
	require.Len(t, result.Effects, 1)
	assert.True(t, result.Effects[0].RemoveTag)
}

func TestActionSendEmailEffect(t *testing.T) {
	result := evalAction(t, &models.ActionContent{
		ActionType:   models.ActionSendEmail,
		EmailTo:      "ops@example.com",
		EmailSubject: "Novo lead",
		EmailBody:    "<p>Lead chegou</p>",
	}, nil)

	require.Len(t, result.Effects, 1)
	effect := result.Effects[0]
	assert.Equal(t, models.EffectSendEmail, effect.Type)
	assert.Equal(t, "ops@example.com", effect.EmailTo)
	assert.Equal(t, "Novo lead", effect.EmailSubject)
}

func TestActionNotifyVariants(t *testing.T) {
	result := evalAction(t, &models.ActionContent{
		ActionType:    models.ActionNotify,
		NotifyTarget:  "team-sales",
		NotifyMessage: "novo cliente",
	}, nil)
	require.Len(t, result.Effects, 1)
	assert.False(t, result.Effects[0].NotifyExternal)

	result = evalAction(t, &models.ActionContent{
		ActionType:    models.ActionNotifyExternal,
		NotifyTarget:  "https://hooks.example.com",
		NotifyMessage: "novo cliente",
	}, nil)
	require.Len(t, result.Effects, 1)
	assert.True(t, result.Effects[0].NotifyExternal)
}

func TestActionCreateTaskInterpolates(t *testing.T) {
	flow := testutil.LinearFlow(
		testutil.ActionNode("action", &models.ActionContent{
			ActionType:      models.ActionCreateTask,
			TaskTitle:       "Ligar para {{name}}",
			TaskDescription: "Cliente pediu contato pelo fluxo",
		}),
		testutil.EndNode("end"),
	)
	session := testutil.CreateTestSession(flow)
	session.SetVariable("name", "Ana")

	node, _ := flow.NodeByID("action")

	result, err := ActionEvaluator{}.Evaluate(context.Background(),
		Request{Flow: flow, Node: node, Session: session}, Deps{})
	require.NoError(t, err)

	require.Len(t, result.Effects, 1)
	effect := result.Effects[0]
	assert.Equal(t, models.EffectCreateTask, effect.Type)
	assert.Equal(t, "Ligar para Ana", effect.TaskTitle)
	assert.Equal(t, "Cliente pediu contato pelo fluxo", effect.TaskDescription)
	assert.Equal(t, models.DecisionAdvance, result.Decision.Kind)
}

func TestActionCloseConversationTerminates(t *testing.T) {
	result := evalAction(t, &models.ActionContent{ActionType: models.ActionCloseConversation}, nil)

	require.Len(t, result.Effects, 1)
	assert.Equal(t, models.EffectCloseConv, result.Effects[0].Type)
	assert.Equal(t, models.DecisionTerminate, result.Decision.Kind)
	assert.Equal(t, models.SessionCompleted, result.Decision.End)
}

func TestActionUnknownTypeErrors(t *testing.T) {
	node := testutil.ActionNode("action", &models.ActionContent{ActionType: "explode"})
	flow := testutil.LinearFlow(node, testutil.EndNode("end"))
	session := testutil.CreateTestSession(flow)

	_, err := ActionEvaluator{}.Evaluate(context.Background(),
		Request{Flow: flow, Node: node, Session: session}, Deps{})
	assert.Error(t, err)
}

func TestTransferEffectsAndEndFlow(t *testing.T) {
	node := testutil.TransferNode("transfer", "dept-support")
	node.Content.(*models.TransferContent).Message = "Transferindo você"

	flow := testutil.LinearFlow(node, testutil.EndNode("end"))
	session := testutil.CreateTestSession(flow)

	result, err := TransferEvaluator{}.Evaluate(context.Background(),
		Request{Flow: flow, Node: node, Session: session}, Deps{})
	require.NoError(t, err)

	require.Len(t, result.Effects, 2)
	assert.Equal(t, models.EffectTransfer, result.Effects[0].Type)
	assert.Equal(t, models.TransferDepartment, result.Effects[0].TransferKind)
	assert.Equal(t, "dept-support", result.Effects[0].TransferID)
	assert.Equal(t, "Transferindo você", result.Effects[1].Text)
	assert.Equal(t, models.DecisionAdvance, result.Decision.Kind)

	node.Content.(*models.TransferContent).EndFlow = true

	result, err = TransferEvaluator{}.Evaluate(context.Background(),
		Request{Flow: flow, Node: node, Session: session}, Deps{})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionTerminate, result.Decision.Kind)
	assert.Equal(t, models.SessionCompleted, result.Decision.End)
}

func TestDelaySuspendsUntilTimerAndAdvancesOnFire(t *testing.T) {
	node := testutil.DelayNode("delay", 5, models.DelayMinutes)
	flow := testutil.LinearFlow(node, testutil.EndNode("end"))
	session := testutil.CreateTestSession(flow)

	now := session.StartedAt

	result, err := DelayEvaluator{}.Evaluate(context.Background(),
		Request{Flow: flow, Node: node, Session: session, Input: Input{Now: now}}, Deps{})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionSuspend, result.Decision.Kind)
	assert.Equal(t, now.Add(5*time.Minute), result.Decision.ResumeAt)

	result, err = DelayEvaluator{}.Evaluate(context.Background(),
		Request{Flow: flow, Node: node, Session: session, Input: Input{TimerFired: true, Now: now}}, Deps{})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionAdvance, result.Decision.Kind)
	assert.Equal(t, "end", result.Decision.NextNodeID)
}
