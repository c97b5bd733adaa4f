package nodes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/zapdesk/flowengine/pkg/models"
)

// ConditionEvaluator evaluates the node's rules against session variables
// and advances through the yes or no edge. String operators are
// case-sensitive; numeric operators parse both sides and treat unparsable
// values as a false rule.
type ConditionEvaluator struct{}

func (ConditionEvaluator) Type() models.NodeType { return models.NodeTypeCondition }

func (ConditionEvaluator) Evaluate(_ context.Context, req Request, _ Deps) (Result, error) {
	content, ok := req.Node.Content.(*models.ConditionContent)
	if !ok {
		return Result{}, fmt.Errorf("node %s: unexpected content type %T", req.Node.NodeID, req.Node.Content)
	}

	outcome := evaluateRules(content, req.Session.Variables)

	handle := models.EdgeHandleNo
	if outcome {
		handle = models.EdgeHandleYes
	}

	if decision, ok := advanceByHandle(req.Flow, req.Node.NodeID, handle); ok {
		return Result{Decision: decision}, nil
	}

	// Boolean alias handles kept for graphs authored by older editors.
	alias := strconv.FormatBool(outcome)
	if decision, ok := advanceByHandle(req.Flow, req.Node.NodeID, alias); ok {
		return Result{Decision: decision}, nil
	}

	return Result{Decision: models.Complete()}, nil
}

func evaluateRules(content *models.ConditionContent, variables map[string]string) bool {
	if len(content.Rules) == 0 {
		return false
	}

	combinator := content.Combinator
	if combinator == "" {
		combinator = models.CombinatorAnd
	}

	for _, rule := range content.Rules {
		matched := evaluateRule(rule, variables[rule.Variable])

		if combinator == models.CombinatorOr && matched {
			return true
		}

		if combinator == models.CombinatorAnd && !matched {
			return false
		}
	}

	return combinator == models.CombinatorAnd
}

func evaluateRule(rule models.ConditionRule, value string) bool {
	switch rule.Operator {
	case models.OpEquals:
		return value == rule.Value
	case models.OpNotEquals:
		return value != rule.Value
	case models.OpContains:
		return strings.Contains(value, rule.Value)
	case models.OpNotContains:
		return !strings.Contains(value, rule.Value)
	case models.OpStartsWith:
		return strings.HasPrefix(value, rule.Value)
	case models.OpEndsWith:
		return strings.HasSuffix(value, rule.Value)
	case models.OpGreaterThan:
		left, right, ok := parseNumbers(value, rule.Value)

		return ok && left > right
	case models.OpLessThan:
		left, right, ok := parseNumbers(value, rule.Value)

		return ok && left < right
	case models.OpIsEmpty:
		return value == ""
	case models.OpIsNotEmpty:
		return value != ""
	default:
		return false
	}
}

func parseNumbers(a, b string) (float64, float64, bool) {
	left, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return 0, 0, false
	}

	right, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return 0, 0, false
	}

	return left, right, true
}
