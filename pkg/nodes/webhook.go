package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/zapdesk/flowengine/pkg/interpolate"
	"github.com/zapdesk/flowengine/pkg/models"
)

// WebhookEvaluator issues the node's HTTP call with interpolated URL,
// headers and body. On success the response body lands in the configured
// variable; failures either continue past the node or fail the session,
// per the continue-on-error flag.
type WebhookEvaluator struct{}

func (WebhookEvaluator) Type() models.NodeType { return models.NodeTypeWebhook }

func (WebhookEvaluator) Evaluate(ctx context.Context, req Request, deps Deps) (Result, error) {
	content, ok := req.Node.Content.(*models.WebhookContent)
	if !ok {
		return Result{}, fmt.Errorf("node %s: unexpected content type %T", req.Node.NodeID, req.Node.Content)
	}

	if deps.Webhooks == nil {
		return webhookFailure(req, content, "webhook caller not configured"), nil
	}

	session := req.Session
	vars := session.Variables

	url := interpolate.Interpolate(content.URL, vars)
	headers := interpolate.Map(content.Headers, vars)
	body := interpolate.Interpolate(content.BodyTemplate, vars)

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(content.Timeout())*time.Second)
	defer cancel()

	resp, err := deps.Webhooks.Call(callCtx, content.Method, url, headers, body)
	if err != nil {
		deps.Logger.Error("Webhook call failed",
			"node_id", req.Node.NodeID, "url", url, "error", err)

		return webhookFailure(req, content, fmt.Sprintf("webhook call failed: %v", err)), nil
	}

	if resp.StatusCode >= 400 {
		deps.Logger.Warn("Webhook returned error status",
			"node_id", req.Node.NodeID, "url", url, "status", resp.StatusCode)

		return webhookFailure(req, content, fmt.Sprintf("webhook returned status %d", resp.StatusCode)), nil
	}

	if content.ResponseVariable != "" {
		session.SetVariable(content.ResponseVariable, resp.Body)
	}

	return Result{Decision: advanceOrComplete(req.Flow, req.Node.NodeID)}, nil
}

// webhookFailure advances past the node when continue_on_error is set,
// leaving the response variable unset, and fails the session otherwise.
func webhookFailure(req Request, content *models.WebhookContent, reason string) Result {
	if content.ContinueOnError {
		return Result{Decision: advanceOrComplete(req.Flow, req.Node.NodeID)}
	}

	return Result{Decision: models.Fail(reason)}
}
