package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/testutil"
)

func TestValidateCanvasAcceptsWellFormedGraph(t *testing.T) {
	nodes := []*models.Node{
		testutil.StartNode(),
		testutil.MenuNode("menu", "Escolha",
			models.MenuOption{Label: "Vendas", Value: "sales"},
		),
		testutil.MessageNode("msg", "oi"),
		testutil.EndNode("end"),
	}
	edges := []*models.Edge{
		testutil.Connect(models.StartNodeID, "menu"),
		testutil.ConnectHandle("menu", "sales", "msg"),
		testutil.Connect("msg", "end"),
	}

	assert.NoError(t, ValidateCanvas(nodes, edges))
}

func TestValidateCanvasRequiresExactlyOneStart(t *testing.T) {
	err := ValidateCanvas([]*models.Node{testutil.EndNode("end")}, nil)
	assert.ErrorIs(t, err, ErrNoStartNode)

	second := testutil.StartNode()
	second.NodeID = "start-2"

	err = ValidateCanvas([]*models.Node{testutil.StartNode(), second, testutil.EndNode("end")}, nil)
	assert.ErrorIs(t, err, ErrNoStartNode)
}

func TestValidateCanvasRejectsDuplicateNodeIDs(t *testing.T) {
	nodes := []*models.Node{
		testutil.StartNode(),
		testutil.MessageNode("msg", "a"),
		testutil.MessageNode("msg", "b"),
	}

	err := ValidateCanvas(nodes, nil)
	assert.ErrorIs(t, err, ErrDuplicateNodeID)
}

func TestValidateCanvasRejectsDanglingEdges(t *testing.T) {
	nodes := []*models.Node{testutil.StartNode(), testutil.EndNode("end")}

	err := ValidateCanvas(nodes, []*models.Edge{testutil.Connect(models.StartNodeID, "ghost")})
	assert.ErrorIs(t, err, ErrDanglingEdge)

	err = ValidateCanvas(nodes, []*models.Edge{testutil.Connect("ghost", "end")})
	assert.ErrorIs(t, err, ErrDanglingEdge)
}

func TestValidateCanvasRejectsEdgesIntoStart(t *testing.T) {
	nodes := []*models.Node{
		testutil.StartNode(),
		testutil.MessageNode("msg", "oi"),
	}
	edges := []*models.Edge{
		testutil.Connect(models.StartNodeID, "msg"),
		testutil.Connect("msg", models.StartNodeID),
	}

	err := ValidateCanvas(nodes, edges)
	assert.ErrorIs(t, err, ErrStartNodeIncoming)
}

func TestValidateCanvasRequiresContentPayload(t *testing.T) {
	nodes := []*models.Node{
		testutil.StartNode(),
		{NodeID: "msg", Type: models.NodeTypeMessage},
	}

	err := ValidateCanvas(nodes, nil)
	assert.ErrorIs(t, err, ErrInvalidNodeContent)
}

func TestValidateCanvasContentSchemas(t *testing.T) {
	cases := []struct {
		name string
		node *models.Node
		ok   bool
	}{
		{
			name: "menu without options",
			node: testutil.MenuNode("menu", "Escolha"),
			ok:   false,
		},
		{
			name: "message without any body",
			node: testutil.MessageNode("msg", ""),
			ok:   false,
		},
		{
			name: "delay below one",
			node: testutil.DelayNode("wait", 0, models.DelayMinutes),
			ok:   false,
		},
		{
			name: "delay valid",
			node: testutil.DelayNode("wait", 5, models.DelayMinutes),
			ok:   true,
		},
		{
			name: "webhook with unsupported method",
			node: testutil.WebhookNode("hook", &models.WebhookContent{URL: "https://x", Method: "TRACE"}),
			ok:   false,
		},
		{
			name: "webhook valid",
			node: testutil.WebhookNode("hook", &models.WebhookContent{URL: "https://x", Method: "POST"}),
			ok:   true,
		},
		{
			name: "condition with unknown operator",
			node: testutil.ConditionNode("cond", models.ConditionRule{Variable: "v", Operator: "matches_regex"}),
			ok:   false,
		},
		{
			name: "ai without model",
			node: testutil.AINode("ai", &models.AIResponseContent{SystemPrompt: "x"}),
			ok:   false,
		},
		{
			name: "transfer with bad target kind",
			node: &models.Node{
				NodeID: "tr", Type: models.NodeTypeTransfer,
				Content: &models.TransferContent{TargetKind: "robot", TargetID: "x"},
			},
			ok: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCanvas([]*models.Node{testutil.StartNode(), tc.node}, nil)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidNodeContent)
			}
		})
	}
}
