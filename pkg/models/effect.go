package models

import "time"

// GalleryItemDelay is the pause between consecutive gallery items when a
// message node sends more than one media reference.
const GalleryItemDelay = 1500 * time.Millisecond

// EffectType identifies an outbound side effect produced by a node evaluator.
type EffectType string

const (
	EffectSendMessage EffectType = "send_message"
	EffectTyping      EffectType = "typing"
	EffectSetTag      EffectType = "set_tag"
	EffectSendEmail   EffectType = "send_email"
	EffectNotify      EffectType = "notify"
	EffectCreateTask  EffectType = "create_task"
	EffectTransfer    EffectType = "transfer"
	EffectCloseConv   EffectType = "close_conversation"
)

// Effect is one outbound action the engine applies through a collaborator
// after a node evaluation. Effects are applied in order.
type Effect struct {
	Type EffectType `json:"type"`

	// send_message
	Text      string     `json:"text,omitempty"`
	Media     *MediaRef  `json:"media,omitempty"`
	Gallery   []MediaRef `json:"gallery,omitempty"`
	ItemDelay time.Duration `json:"item_delay,omitempty"`

	// set_tag
	Tag       string `json:"tag,omitempty"`
	RemoveTag bool   `json:"remove_tag,omitempty"`

	// send_email
	EmailTo      string `json:"email_to,omitempty"`
	EmailSubject string `json:"email_subject,omitempty"`
	EmailBody    string `json:"email_body,omitempty"`

	// notify
	NotifyTarget   string `json:"notify_target,omitempty"`
	NotifyMessage  string `json:"notify_message,omitempty"`
	NotifyExternal bool   `json:"notify_external,omitempty"`

	// create_task
	TaskTitle       string `json:"task_title,omitempty"`
	TaskDescription string `json:"task_description,omitempty"`

	// transfer
	TransferKind TransferTarget `json:"transfer_kind,omitempty"`
	TransferID   string         `json:"transfer_id,omitempty"`
}

// AwaitKind distinguishes what a suspended session is waiting for.
type AwaitKind string

const (
	AwaitMenu AwaitKind = "menu"
	AwaitText AwaitKind = "text"
)

// DecisionKind is the control-flow outcome of a node evaluation.
type DecisionKind string

const (
	DecisionAdvance    DecisionKind = "advance"
	DecisionAwaitInput DecisionKind = "await_input"
	DecisionSuspend    DecisionKind = "suspend"
	DecisionTerminate  DecisionKind = "terminate"
)

// Decision tells the engine what to do after applying a node's effects.
type Decision struct {
	Kind DecisionKind

	// advance
	NextNodeID string

	// await_input
	Await AwaitKind

	// suspend
	ResumeAt time.Time

	// terminate
	End       SessionState // completed, cancelled or failed
	EndReason string
}

// Advance moves the session to the given node.
func Advance(nodeID string) Decision {
	return Decision{Kind: DecisionAdvance, NextNodeID: nodeID}
}

// AwaitInput suspends the session until the next inbound message.
func AwaitInput(kind AwaitKind) Decision {
	return Decision{Kind: DecisionAwaitInput, Await: kind}
}

// Suspend parks the session until a durable timer fires at resumeAt.
func Suspend(resumeAt time.Time) Decision {
	return Decision{Kind: DecisionSuspend, ResumeAt: resumeAt}
}

// Complete terminates the session successfully.
func Complete() Decision {
	return Decision{Kind: DecisionTerminate, End: SessionCompleted}
}

// Fail terminates the session with a visible failure marker.
func Fail(reason string) Decision {
	return Decision{Kind: DecisionTerminate, End: SessionFailed, EndReason: reason}
}
