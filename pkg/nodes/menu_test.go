package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/testutil"
)

// menuFlow builds start -> menu with sales/support branches and a fallback
// edge to the end node.
func menuFlow() *models.Flow {
	nodes := []*models.Node{
		testutil.StartNode(),
		testutil.MenuNode("menu", "Como podemos ajudar?",
			models.MenuOption{Label: "Vendas", Value: "sales"},
			models.MenuOption{Label: "Suporte", Value: "support"},
		),
		testutil.MessageNode("msg-sales", "Vendas na linha"),
		testutil.TransferNode("transfer-support", "dept-support"),
		testutil.EndNode("end"),
	}

	edges := []*models.Edge{
		testutil.Connect(models.StartNodeID, "menu"),
		testutil.ConnectHandle("menu", "sales", "msg-sales"),
		testutil.ConnectHandle("menu", "support", "transfer-support"),
		testutil.ConnectHandle("menu", FallbackHandle, "end"),
	}

	return testutil.CreateTestFlow(testutil.WithGraph(nodes, edges))
}

func menuRequest(flow *models.Flow, session *models.Session, input Input) Request {
	node, _ := flow.NodeByID("menu")

	return Request{Flow: flow, Node: node, Session: session, Input: input}
}

func TestMenuPromptsAndAwaitsWithoutReply(t *testing.T) {
	flow := menuFlow()
	session := testutil.CreateTestSession(flow, testutil.AwaitingAt("menu"))

	result, err := MenuEvaluator{}.Evaluate(context.Background(), menuRequest(flow, session, Input{}), Deps{})
	require.NoError(t, err)

	require.Len(t, result.Effects, 1)
	assert.Equal(t, models.EffectSendMessage, result.Effects[0].Type)
	assert.Equal(t, "Como podemos ajudar?", result.Effects[0].Text)
	assert.Equal(t, models.DecisionAwaitInput, result.Decision.Kind)
	assert.Equal(t, models.AwaitMenu, result.Decision.Await)
}

func TestMenuRoutesByValueLabelAndPosition(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"value match", "sales", "msg-sales"},
		{"label match case-insensitive", "suporte", "transfer-support"},
		{"numeric position", "1", "msg-sales"},
		{"padded reply", "  Vendas  ", "msg-sales"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := menuFlow()
			session := testutil.CreateTestSession(flow, testutil.AwaitingAt("menu"))

			result, err := MenuEvaluator{}.Evaluate(context.Background(),
				menuRequest(flow, session, Input{Reply: tt.reply, HasReply: true}), Deps{})
			require.NoError(t, err)

			assert.Equal(t, models.DecisionAdvance, result.Decision.Kind)
			assert.Equal(t, tt.want, result.Decision.NextNodeID)
			assert.Empty(t, result.Effects)
		})
	}
}

func TestMenuInvalidReplyRepromptsAndCounts(t *testing.T) {
	flow := menuFlow()
	session := testutil.CreateTestSession(flow, testutil.AwaitingAt("menu"))

	result, err := MenuEvaluator{}.Evaluate(context.Background(),
		menuRequest(flow, session, Input{Reply: "banana", HasReply: true}), Deps{})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionAwaitInput, result.Decision.Kind)
	require.Len(t, result.Effects, 1)
	assert.Contains(t, result.Effects[0].Text, "inválida")
	assert.Equal(t, 1, session.AttemptCount("menu"))
}

func TestMenuExhaustedAttemptsTakeFallbackEdge(t *testing.T) {
	flow := menuFlow()
	session := testutil.CreateTestSession(flow, testutil.AwaitingAt("menu"))
	session.SetAttemptCount("menu", models.DefaultMenuAttempts-1)

	result, err := MenuEvaluator{}.Evaluate(context.Background(),
		menuRequest(flow, session, Input{Reply: "banana", HasReply: true}), Deps{})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionAdvance, result.Decision.Kind)
	assert.Equal(t, "end", result.Decision.NextNodeID)
	assert.Equal(t, 0, session.AttemptCount("menu"), "counter cleared after fallback")
}

func TestMenuExhaustedAttemptsWithoutFallbackCompletes(t *testing.T) {
	flow := menuFlow()
	flow.Edges = flow.Edges[:len(flow.Edges)-1] // drop the fallback edge

	session := testutil.CreateTestSession(flow, testutil.AwaitingAt("menu"))
	session.SetAttemptCount("menu", models.DefaultMenuAttempts-1)

	result, err := MenuEvaluator{}.Evaluate(context.Background(),
		menuRequest(flow, session, Input{Reply: "banana", HasReply: true}), Deps{})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionTerminate, result.Decision.Kind)
	assert.Equal(t, models.SessionCompleted, result.Decision.End)
}

func TestMenuValidReplyClearsAttemptCounter(t *testing.T) {
	flow := menuFlow()
	session := testutil.CreateTestSession(flow, testutil.AwaitingAt("menu"))
	session.SetAttemptCount("menu", 2)

	_, err := MenuEvaluator{}.Evaluate(context.Background(),
		menuRequest(flow, session, Input{Reply: "support", HasReply: true}), Deps{})
	require.NoError(t, err)

	assert.Equal(t, 0, session.AttemptCount("menu"))
}

func TestMenuCustomInvalidMessageAndAttemptCap(t *testing.T) {
	flow := menuFlow()
	node, _ := flow.NodeByID("menu")
	content := node.Content.(*models.MenuContent)
	content.InvalidMessage = "Tente {{name}}"
	content.MaxAttempts = 1

	session := testutil.CreateTestSession(flow, testutil.AwaitingAt("menu"))
	session.SetVariable("name", "de novo")

	result, err := MenuEvaluator{}.Evaluate(context.Background(),
		menuRequest(flow, session, Input{Reply: "banana", HasReply: true}), Deps{})
	require.NoError(t, err)

	// A single attempt cap goes straight to the fallback edge.
	assert.Equal(t, models.DecisionAdvance, result.Decision.Kind)
	assert.Equal(t, "end", result.Decision.NextNodeID)
}
