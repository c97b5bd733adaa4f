package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/zapdesk/flowengine/pkg/models"
)

// ValidateCanvas checks a graph's structural invariants and every node's
// content payload before it replaces a flow's canvas.
func ValidateCanvas(nodes []*models.Node, edges []*models.Edge) error {
	seen := make(map[string]bool, len(nodes))
	startCount := 0

	for _, node := range nodes {
		if seen[node.NodeID] {
			return NewValidationError("ValidateCanvas", "DUPLICATE_NODE_ID",
				fmt.Sprintf("node id %q appears more than once", node.NodeID), ErrDuplicateNodeID)
		}

		seen[node.NodeID] = true

		if node.Type == models.NodeTypeStart {
			startCount++
		}

		err := validateNodeContent(node)
		if err != nil {
			return err
		}
	}

	if startCount != 1 {
		return NewValidationError("ValidateCanvas", "START_NODE_REQUIRED",
			fmt.Sprintf("canvas has %d start nodes, want exactly 1", startCount), ErrNoStartNode)
	}

	for _, edge := range edges {
		if !seen[edge.SourceNodeID] {
			return NewValidationError("ValidateCanvas", "DANGLING_EDGE",
				fmt.Sprintf("edge %s source %q is not on the canvas", edge.EdgeID, edge.SourceNodeID), ErrDanglingEdge)
		}

		if !seen[edge.TargetNodeID] {
			return NewValidationError("ValidateCanvas", "DANGLING_EDGE",
				fmt.Sprintf("edge %s target %q is not on the canvas", edge.EdgeID, edge.TargetNodeID), ErrDanglingEdge)
		}

		if target, _ := nodeByID(nodes, edge.TargetNodeID); target != nil && target.Type == models.NodeTypeStart {
			return NewValidationError("ValidateCanvas", "START_NODE_INCOMING",
				fmt.Sprintf("edge %s targets the start node", edge.EdgeID), ErrStartNodeIncoming)
		}
	}

	return nil
}

func nodeByID(nodes []*models.Node, id string) (*models.Node, bool) {
	for _, n := range nodes {
		if n.NodeID == id {
			return n, true
		}
	}

	return nil, false
}

// validateNodeContent checks a node's content payload against the JSON schema
// of its node type.
func validateNodeContent(node *models.Node) error {
	schema, ok := contentSchemas[node.Type]
	if !ok {
		// Start and end nodes carry no configurable content.
		return nil
	}

	if node.Content == nil {
		return NewValidationError("validateNodeContent", "CONTENT_REQUIRED",
			fmt.Sprintf("node %s (%s) has no content payload", node.NodeID, node.Type), ErrInvalidNodeContent)
	}

	// Round-trip through JSON so the schema sees the wire form.
	raw, err := json.Marshal(node.Content)
	if err != nil {
		return fmt.Errorf("failed to marshal content of node %s: %w", node.NodeID, err)
	}

	var payload map[string]any

	err = json.Unmarshal(raw, &payload)
	if err != nil {
		return fmt.Errorf("failed to decode content of node %s: %w", node.NodeID, err)
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate content of node %s: %w", node.NodeID, err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return NewValidationError("validateNodeContent", "INVALID_CONTENT",
			fmt.Sprintf("node %s (%s): %s", node.NodeID, node.Type, strings.Join(descriptions, "; ")),
			ErrInvalidNodeContent)
	}

	return nil
}

// contentSchemas holds the per-type JSON schema of node content payloads.
// Start and end nodes are absent on purpose.
var contentSchemas = map[models.NodeType]map[string]any{
	models.NodeTypeMessage: {
		"type": "object",
		"properties": map[string]any{
			"text":  map[string]any{"type": "string"},
			"media": map[string]any{"type": "object"},
			"gallery": map[string]any{
				"type":     "array",
				"maxItems": models.MaxGalleryItems,
			},
			"typing": map[string]any{"type": "boolean"},
		},
		"anyOf": []any{
			map[string]any{"required": []any{"text"}},
			map[string]any{"required": []any{"media"}},
			map[string]any{"required": []any{"gallery"}},
		},
	},
	models.NodeTypeMenu: {
		"type":     "object",
		"required": []any{"prompt", "options"},
		"properties": map[string]any{
			"prompt": map[string]any{"type": "string", "minLength": 1},
			"options": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":     "object",
					"required": []any{"label", "value"},
					"properties": map[string]any{
						"label": map[string]any{"type": "string", "minLength": 1},
						"value": map[string]any{"type": "string", "minLength": 1},
					},
				},
			},
			"invalid_message": map[string]any{"type": "string"},
			"max_attempts":    map[string]any{"type": "integer", "minimum": 0},
		},
	},
	models.NodeTypeInput: {
		"type":     "object",
		"required": []any{"prompt", "variable"},
		"properties": map[string]any{
			"prompt":   map[string]any{"type": "string", "minLength": 1},
			"variable": map[string]any{"type": "string", "minLength": 1},
			"validation": map[string]any{
				"type": "string",
				"enum": []any{"", "text", "email", "phone", "number", "cpf", "date"},
			},
			"error_message": map[string]any{"type": "string"},
			"required":      map[string]any{"type": "boolean"},
		},
	},
	models.NodeTypeCondition: {
		"type":     "object",
		"required": []any{"rules"},
		"properties": map[string]any{
			"rules": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":     "object",
					"required": []any{"variable", "operator"},
					"properties": map[string]any{
						"variable": map[string]any{"type": "string", "minLength": 1},
						"operator": map[string]any{
							"type": "string",
							"enum": []any{
								"equals", "not_equals", "contains", "not_contains",
								"starts_with", "ends_with", "greater_than", "less_than",
								"is_empty", "is_not_empty",
							},
						},
						"value": map[string]any{"type": "string"},
					},
				},
			},
			"combinator": map[string]any{
				"type": "string",
				"enum": []any{"", "and", "or"},
			},
		},
	},
	models.NodeTypeAction: {
		"type":     "object",
		"required": []any{"action_type"},
		"properties": map[string]any{
			"action_type": map[string]any{
				"type": "string",
				"enum": []any{
					"set_variable", "add_tag", "remove_tag", "send_email",
					"notify", "notify_external", "create_task", "close_conversation",
				},
			},
		},
	},
	models.NodeTypeTransfer: {
		"type":     "object",
		"required": []any{"target_kind", "target_id"},
		"properties": map[string]any{
			"target_kind": map[string]any{
				"type": "string",
				"enum": []any{"department", "agent", "queue"},
			},
			"target_id": map[string]any{"type": "string", "minLength": 1},
			"message":   map[string]any{"type": "string"},
			"end_flow":  map[string]any{"type": "boolean"},
		},
	},
	models.NodeTypeAIResponse: {
		"type":     "object",
		"required": []any{"model"},
		"properties": map[string]any{
			"system_prompt":    map[string]any{"type": "string"},
			"model":            map[string]any{"type": "string", "minLength": 1},
			"temperature":      map[string]any{"type": "number", "minimum": 0, "maximum": 2},
			"save_to_variable": map[string]any{"type": "string"},
			"include_history":  map[string]any{"type": "boolean"},
		},
	},
	models.NodeTypeDelay: {
		"type":     "object",
		"required": []any{"value", "unit"},
		"properties": map[string]any{
			"value": map[string]any{"type": "integer", "minimum": 1},
			"unit": map[string]any{
				"type": "string",
				"enum": []any{"seconds", "minutes", "hours"},
			},
			"typing": map[string]any{"type": "boolean"},
		},
	},
	models.NodeTypeWebhook: {
		"type":     "object",
		"required": []any{"url", "method"},
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "minLength": 1},
			"method": map[string]any{
				"type": "string",
				"enum": []any{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"headers":           map[string]any{"type": "object"},
			"body_template":     map[string]any{"type": "string"},
			"response_variable": map[string]any{"type": "string"},
			"timeout_seconds":   map[string]any{"type": "integer", "minimum": 0},
			"continue_on_error": map[string]any{"type": "boolean"},
		},
	},
}
