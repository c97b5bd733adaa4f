package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// NodeContent is the type-tagged payload of a node. The concrete type is
// selected by the node's NodeType; see UnmarshalContent.
type NodeContent interface {
	ContentType() NodeType
}

// MediaRef points at an uploaded media asset with an optional caption.
type MediaRef struct {
	URL     string `json:"url"     validate:"required,url"`
	Kind    string `json:"kind"` // image, video, audio, document
	Caption string `json:"caption,omitempty"`
}

// MaxGalleryItems caps the ordered media list of a message node.
const MaxGalleryItems = 10

// MessageContent sends text or media to the conversation.
type MessageContent struct {
	Text     string     `json:"text,omitempty"`
	Media    *MediaRef  `json:"media,omitempty"`
	Gallery  []MediaRef `json:"gallery,omitempty" validate:"max=10"`
	Typing   bool       `json:"typing,omitempty"` // Simulate typing before sending
}

func (MessageContent) ContentType() NodeType { return NodeTypeMessage }

// MenuOption is one selectable entry of a menu node.
type MenuOption struct {
	Label string `json:"label" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// DefaultMenuAttempts bounds invalid menu replies before the fallback path.
const DefaultMenuAttempts = 3

// MenuContent prompts with an ordered option list and awaits a choice.
type MenuContent struct {
	Prompt         string       `json:"prompt" validate:"required"`
	Options        []MenuOption `json:"options" validate:"required,min=1,dive"`
	InvalidMessage string       `json:"invalid_message,omitempty"`
	MaxAttempts    int          `json:"max_attempts,omitempty"`
}

func (MenuContent) ContentType() NodeType { return NodeTypeMenu }

// Attempts returns the configured attempt cap, defaulting when unset.
func (c MenuContent) Attempts() int {
	if c.MaxAttempts <= 0 {
		return DefaultMenuAttempts
	}

	return c.MaxAttempts
}

// ValidationKind selects the format check applied to an input reply.
type ValidationKind string

const (
	ValidationText   ValidationKind = "text"
	ValidationEmail  ValidationKind = "email"
	ValidationPhone  ValidationKind = "phone"
	ValidationNumber ValidationKind = "number"
	ValidationCPF    ValidationKind = "cpf"
	ValidationDate   ValidationKind = "date"
)

// InputContent prompts for free text and stores the validated reply.
type InputContent struct {
	Prompt       string         `json:"prompt"   validate:"required"`
	Variable     string         `json:"variable" validate:"required"`
	Validation   ValidationKind `json:"validation,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Required     bool           `json:"required"`
}

func (InputContent) ContentType() NodeType { return NodeTypeInput }

// ConditionOperator compares a session variable against a literal.
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "equals"
	OpNotEquals   ConditionOperator = "not_equals"
	OpContains    ConditionOperator = "contains"
	OpNotContains ConditionOperator = "not_contains"
	OpStartsWith  ConditionOperator = "starts_with"
	OpEndsWith    ConditionOperator = "ends_with"
	OpGreaterThan ConditionOperator = "greater_than"
	OpLessThan    ConditionOperator = "less_than"
	OpIsEmpty     ConditionOperator = "is_empty"
	OpIsNotEmpty  ConditionOperator = "is_not_empty"
)

// ConditionRule is one comparison of a condition node.
type ConditionRule struct {
	Variable string            `json:"variable" validate:"required"`
	Operator ConditionOperator `json:"operator" validate:"required"`
	Value    string            `json:"value,omitempty"`
}

// ConditionCombinator joins the rules of a condition node.
type ConditionCombinator string

const (
	CombinatorAnd ConditionCombinator = "and"
	CombinatorOr  ConditionCombinator = "or"
)

// ConditionContent evaluates rules against session variables and branches
// on the boolean outcome.
type ConditionContent struct {
	Rules      []ConditionRule     `json:"rules" validate:"required,min=1,dive"`
	Combinator ConditionCombinator `json:"combinator,omitempty"`
}

func (ConditionContent) ContentType() NodeType { return NodeTypeCondition }

// ActionType selects the side effect performed by an action node.
type ActionType string

const (
	ActionSetVariable       ActionType = "set_variable"
	ActionAddTag            ActionType = "add_tag"
	ActionRemoveTag         ActionType = "remove_tag"
	ActionSendEmail         ActionType = "send_email"
	ActionNotify            ActionType = "notify"
	ActionNotifyExternal    ActionType = "notify_external"
	ActionCreateTask        ActionType = "create_task"
	ActionCloseConversation ActionType = "close_conversation"
)

// ActionContent performs a CRM-side effect and advances.
type ActionContent struct {
	ActionType ActionType `json:"action_type" validate:"required"`

	// set_variable
	Variable string `json:"variable,omitempty"`
	Value    string `json:"value,omitempty"`

	// add_tag / remove_tag
	Tag string `json:"tag,omitempty"`

	// send_email
	EmailTo      string `json:"email_to,omitempty"`
	EmailSubject string `json:"email_subject,omitempty"`
	EmailBody    string `json:"email_body,omitempty"`

	// notify / notify_external
	NotifyTarget  string `json:"notify_target,omitempty"`
	NotifyMessage string `json:"notify_message,omitempty"`

	// create_task
	TaskTitle       string `json:"task_title,omitempty"`
	TaskDescription string `json:"task_description,omitempty"`
}

func (ActionContent) ContentType() NodeType { return NodeTypeAction }

// TransferTarget selects where a transfer node hands the conversation.
type TransferTarget string

const (
	TransferDepartment TransferTarget = "department"
	TransferAgent      TransferTarget = "agent"
	TransferQueue      TransferTarget = "queue"
)

// TransferContent hands the conversation to a human target.
type TransferContent struct {
	TargetKind TransferTarget `json:"target_kind" validate:"required"`
	TargetID   string         `json:"target_id"   validate:"required"`
	Message    string         `json:"message,omitempty"`
	EndFlow    bool           `json:"end_flow"`
}

func (TransferContent) ContentType() NodeType { return NodeTypeTransfer }

// AIResponseContent asks the AI provider for a reply and stores it.
type AIResponseContent struct {
	SystemPrompt   string  `json:"system_prompt,omitempty"`
	Model          string  `json:"model" validate:"required"`
	Temperature    float64 `json:"temperature,omitempty"`
	SaveToVariable string  `json:"save_to_variable,omitempty"`
	IncludeHistory bool    `json:"include_history"`
}

func (AIResponseContent) ContentType() NodeType { return NodeTypeAIResponse }

// DelayUnit is the unit of a delay node's duration.
type DelayUnit string

const (
	DelaySeconds DelayUnit = "seconds"
	DelayMinutes DelayUnit = "minutes"
	DelayHours   DelayUnit = "hours"
)

// DelayContent suspends the session until a durable timer fires.
type DelayContent struct {
	Value  int       `json:"value" validate:"required,min=1"`
	Unit   DelayUnit `json:"unit"  validate:"required"`
	Typing bool      `json:"typing,omitempty"`
}

func (DelayContent) ContentType() NodeType { return NodeTypeDelay }

// Duration converts the configured value and unit to a time.Duration.
func (c DelayContent) Duration() time.Duration {
	switch c.Unit {
	case DelayMinutes:
		return time.Duration(c.Value) * time.Minute
	case DelayHours:
		return time.Duration(c.Value) * time.Hour
	default:
		return time.Duration(c.Value) * time.Second
	}
}

// DefaultWebhookTimeoutSeconds bounds webhook node calls when unset.
const DefaultWebhookTimeoutSeconds = 30

// WebhookContent calls an external HTTP endpoint.
type WebhookContent struct {
	URL              string            `json:"url"    validate:"required"`
	Method           string            `json:"method" validate:"required"`
	Headers          map[string]string `json:"headers,omitempty"`
	BodyTemplate     string            `json:"body_template,omitempty"`
	ResponseVariable string            `json:"response_variable,omitempty"`
	TimeoutSeconds   int               `json:"timeout_seconds,omitempty"`
	ContinueOnError  bool              `json:"continue_on_error"`
}

func (WebhookContent) ContentType() NodeType { return NodeTypeWebhook }

// Timeout returns the configured timeout in seconds, defaulting when unset.
func (c WebhookContent) Timeout() int {
	if c.TimeoutSeconds <= 0 {
		return DefaultWebhookTimeoutSeconds
	}

	return c.TimeoutSeconds
}

// StartContent is the entry node payload. It carries no configuration.
type StartContent struct{}

func (StartContent) ContentType() NodeType { return NodeTypeStart }

// EndContent is the terminal node payload. It carries no configuration.
type EndContent struct{}

func (EndContent) ContentType() NodeType { return NodeTypeEnd }

// UnmarshalContent decodes a content payload for the given node type.
// Start and end nodes accept an absent payload.
func UnmarshalContent(nodeType NodeType, data json.RawMessage) (NodeContent, error) {
	decode := func(v NodeContent) (NodeContent, error) {
		if len(data) == 0 {
			return nil, fmt.Errorf("node type %s requires a content payload", nodeType)
		}

		err := json.Unmarshal(data, v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s content: %w", nodeType, err)
		}

		return v, nil
	}

	switch nodeType {
	case NodeTypeStart:
		return StartContent{}, nil
	case NodeTypeEnd:
		return EndContent{}, nil
	case NodeTypeMessage:
		return decode(&MessageContent{})
	case NodeTypeMenu:
		return decode(&MenuContent{})
	case NodeTypeInput:
		return decode(&InputContent{})
	case NodeTypeCondition:
		return decode(&ConditionContent{})
	case NodeTypeAction:
		return decode(&ActionContent{})
	case NodeTypeTransfer:
		return decode(&TransferContent{})
	case NodeTypeAIResponse:
		return decode(&AIResponseContent{})
	case NodeTypeDelay:
		return decode(&DelayContent{})
	case NodeTypeWebhook:
		return decode(&WebhookContent{})
	default:
		return nil, fmt.Errorf("unknown node type %q", nodeType)
	}
}
