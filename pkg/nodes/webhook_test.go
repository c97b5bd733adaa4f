package nodes

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/flowengine/pkg/mocks"
	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/protocol"
	"github.com/zapdesk/flowengine/pkg/testutil"
)

func webhookFlow(content *models.WebhookContent) (*models.Flow, *models.Node) {
	node := testutil.WebhookNode("hook", content)
	flow := testutil.LinearFlow(node, testutil.EndNode("end"))

	return flow, node
}

func TestWebhookSuccessStoresResponseVariable(t *testing.T) {
	flow, node := webhookFlow(&models.WebhookContent{
		URL:              "https://api.example.com/orders/{{order_id}}",
		Method:           "GET",
		Headers:          map[string]string{"X-Order": "{{order_id}}"},
		ResponseVariable: "order_json",
	})
	session := testutil.CreateTestSession(flow)
	session.SetVariable("order_id", "42")

	caller := &mocks.MockWebhookCaller{}
	caller.On("Call", mock.Anything, "GET", "https://api.example.com/orders/42",
		map[string]string{"X-Order": "42"}, "").
		Return(protocol.WebhookResponse{StatusCode: 200, Body: `{"status":"paid"}`}, nil)

	result, err := WebhookEvaluator{}.Evaluate(context.Background(),
		Request{Flow: flow, Node: node, Session: session},
		Deps{Webhooks: caller, Logger: slog.Default()})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionAdvance, result.Decision.Kind)
	assert.Equal(t, `{"status":"paid"}`, session.Variables["order_json"])
	caller.AssertExpectations(t)
}

func TestWebhookFailureFailsSessionByDefault(t *testing.T) {
	flow, node := webhookFlow(&models.WebhookContent{
		URL:    "https://api.example.com/orders",
		Method: "POST",
	})
	session := testutil.CreateTestSession(flow)

	caller := &mocks.MockWebhookCaller{}
	caller.On("Call", mock.Anything, "POST", "https://api.example.com/orders", mock.Anything, "").
		Return(protocol.WebhookResponse{}, errors.New("connection refused"))

	result, err := WebhookEvaluator{}.Evaluate(context.Background(),
		Request{Flow: flow, Node: node, Session: session},
		Deps{Webhooks: caller, Logger: slog.Default()})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionTerminate, result.Decision.Kind)
	assert.Equal(t, models.SessionFailed, result.Decision.End)
	assert.Contains(t, result.Decision.EndReason, "webhook call failed")
}

func TestWebhookFailureContinuesWhenConfigured(t *testing.T) {
	flow, node := webhookFlow(&models.WebhookContent{
		URL:              "https://api.example.com/orders",
		Method:           "POST",
		ResponseVariable: "resp",
		ContinueOnError:  true,
	})
	session := testutil.CreateTestSession(flow)

	caller := &mocks.MockWebhookCaller{}
	caller.On("Call", mock.Anything, "POST", "https://api.example.com/orders", mock.Anything, "").
		Return(protocol.WebhookResponse{}, errors.New("connection refused"))

	result, err := WebhookEvaluator{}.Evaluate(context.Background(),
		Request{Flow: flow, Node: node, Session: session},
		Deps{Webhooks: caller, Logger: slog.Default()})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionAdvance, result.Decision.Kind)
	assert.Equal(t, "end", result.Decision.NextNodeID)
	assert.NotContains(t, session.Variables, "resp", "response variable stays unset on failure")
}

func TestWebhookErrorStatusIsFailure(t *testing.T) {
	flow, node := webhookFlow(&models.WebhookContent{
		URL:    "https://api.example.com/orders",
		Method: "GET",
	})
	session := testutil.CreateTestSession(flow)

	caller := &mocks.MockWebhookCaller{}
	caller.On("Call", mock.Anything, "GET", "https://api.example.com/orders", mock.Anything, "").
		Return(protocol.WebhookResponse{StatusCode: 503, Body: "unavailable"}, nil)

	result, err := WebhookEvaluator{}.Evaluate(context.Background(),
		Request{Flow: flow, Node: node, Session: session},
		Deps{Webhooks: caller, Logger: slog.Default()})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionTerminate, result.Decision.Kind)
	assert.Contains(t, result.Decision.EndReason, "503")
}

func TestWebhookBodyTemplateInterpolated(t *testing.T) {
	flow, node := webhookFlow(&models.WebhookContent{
		URL:          "https://api.example.com/leads",
		Method:       "POST",
		BodyTemplate: `{"email":"{{email}}"}`,
	})
	session := testutil.CreateTestSession(flow)
	session.SetVariable("email", "ana@example.com")

	caller := &mocks.MockWebhookCaller{}
	caller.On("Call", mock.Anything, "POST", "https://api.example.com/leads",
		mock.Anything, `{"email":"ana@example.com"}`).
		Return(protocol.WebhookResponse{StatusCode: 201}, nil)

	_, err := WebhookEvaluator{}.Evaluate(context.Background(),
		Request{Flow: flow, Node: node, Session: session},
		Deps{Webhooks: caller, Logger: slog.Default()})
	require.NoError(t, err)

	caller.AssertExpectations(t)
}
