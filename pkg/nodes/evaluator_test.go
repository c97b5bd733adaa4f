package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/testutil"
)

func TestRegistryCoversAllNodeTypes(t *testing.T) {
	registry := NewRegistry(Deps{})

	types := []models.NodeType{
		models.NodeTypeStart, models.NodeTypeMessage, models.NodeTypeMenu,
		models.NodeTypeInput, models.NodeTypeCondition, models.NodeTypeAction,
		models.NodeTypeTransfer, models.NodeTypeAIResponse, models.NodeTypeDelay,
		models.NodeTypeWebhook, models.NodeTypeEnd,
	}

	for _, nodeType := range types {
		_, ok := registry.evaluators[nodeType]
		assert.True(t, ok, "missing evaluator for %s", nodeType)
	}
}

func TestRegistryUnknownTypeErrors(t *testing.T) {
	registry := NewRegistry(Deps{})
	flow := testutil.LinearFlow(testutil.EndNode("end"))
	session := testutil.CreateTestSession(flow)

	_, err := registry.Evaluate(context.Background(), Request{
		Flow:    flow,
		Node:    &models.Node{NodeID: "x", Type: "mystery"},
		Session: session,
	})
	assert.Error(t, err)
}

func TestStartAdvancesToFirstEdge(t *testing.T) {
	flow := testutil.LinearFlow(testutil.MessageNode("msg", "oi"), testutil.EndNode("end"))
	session := testutil.CreateTestSession(flow)

	start, _ := flow.NodeByID(models.StartNodeID)

	result, err := StartEvaluator{}.Evaluate(context.Background(),
		Request{Flow: flow, Node: start, Session: session}, Deps{})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionAdvance, result.Decision.Kind)
	assert.Equal(t, "msg", result.Decision.NextNodeID)
}

func TestEndCompletesSession(t *testing.T) {
	result, err := EndEvaluator{}.Evaluate(context.Background(), Request{}, Deps{})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionTerminate, result.Decision.Kind)
	assert.Equal(t, models.SessionCompleted, result.Decision.End)
}

func TestEvaluatorsRejectMismatchedContent(t *testing.T) {
	flow := testutil.LinearFlow(testutil.EndNode("end"))
	session := testutil.CreateTestSession(flow)

	node := &models.Node{NodeID: "bad", Type: models.NodeTypeMessage, Content: &models.MenuContent{}}

	_, err := MessageEvaluator{}.Evaluate(context.Background(),
		Request{Flow: flow, Node: node, Session: session}, Deps{})
	assert.Error(t, err)
}
