// Package engine drives flow sessions: it starts them from trigger matches or
// manual requests, resumes them on inbound messages and timer fires, applies
// node effects through the injected collaborators and persists every state
// transition with optimistic concurrency.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zapdesk/flowengine/pkg/eventbus"
	"github.com/zapdesk/flowengine/pkg/events"
	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/nodes"
	"github.com/zapdesk/flowengine/pkg/otelhelper"
	"github.com/zapdesk/flowengine/pkg/persistence"
	"github.com/zapdesk/flowengine/pkg/protocol"
	"github.com/zapdesk/flowengine/pkg/trigger"
)

// MaxSteps bounds how many nodes a session may traverse within one resume
// before the engine declares a loop and fails the session.
const MaxSteps = 50

// Config carries the engine's collaborators. All fields except Tracer are
// required; a nil Clock defaults to time.Now.
type Config struct {
	Persistence persistence.Persistence
	Registry    *nodes.Registry
	Matcher     *trigger.Matcher
	Messenger   protocol.Messenger
	CRM         protocol.CRMService
	Email       protocol.EmailSender
	Timers      protocol.TimerScheduler
	Publisher   eventbus.EventPublisher
	Locker      Locker
	Logger      *slog.Logger
	Tracer      trace.Tracer
	Clock       func() time.Time
}

// Engine executes flow sessions. All entry points serialize per conversation
// through the Locker, so at most one step runs for a conversation at a time.
type Engine struct {
	persistence persistence.Persistence
	registry    *nodes.Registry
	matcher     *trigger.Matcher
	messenger   protocol.Messenger
	crm         protocol.CRMService
	email       protocol.EmailSender
	timers      protocol.TimerScheduler
	publisher   eventbus.EventPublisher
	locker      Locker
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewEngine creates an engine from its collaborators.
func NewEngine(cfg Config) *Engine {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Engine{
		persistence: cfg.Persistence,
		registry:    cfg.Registry,
		matcher:     cfg.Matcher,
		messenger:   cfg.Messenger,
		crm:         cfg.CRM,
		email:       cfg.Email,
		timers:      cfg.Timers,
		publisher:   cfg.Publisher,
		locker:      cfg.Locker,
		logger:      cfg.Logger.With("module", "engine"),
		tracer:      cfg.Tracer,
		now:         now,
	}
}

// HandleInbound processes one inbound message of a conversation. When the
// conversation has an active session awaiting input the message resumes it;
// without an active session the organization's flows are matched against the
// text and, on a trigger hit, a new session starts. A message during a delay
// or one that neither resumes nor triggers anything is a no-op.
func (e *Engine) HandleInbound(ctx context.Context, organizationID, connectionID, conversationID, text string) error {
	ctx, span := e.startSpan(ctx, "engine.handle_inbound",
		attribute.String(otelhelper.ConversationIDKey, conversationID),
		attribute.String(otelhelper.OrganizationIDKey, organizationID))
	defer span.End()

	release, err := e.locker.Lock(ctx, conversationID)
	if err != nil {
		return err
	}
	defer release()

	session, err := e.persistence.SessionRepository().ActiveSessionByConversation(ctx, conversationID)

	switch {
	case err == nil:
		// Only a session waiting on a reply consumes the message. A session
		// parked on a delay stays dormant until its timer fires; resuming it
		// here would reset the delay and schedule a second timer.
		if session.State != models.SessionAwaitingInput {
			e.logger.Debug("Inbound message ignored, session is not awaiting input",
				"session_id", session.ID,
				"state", session.State)

			return nil
		}

		return e.resume(ctx, session, nodes.Input{Reply: text, HasReply: true, Now: e.now()})
	case persistence.IsSessionNotFound(err):
		return e.startFromTrigger(ctx, organizationID, connectionID, conversationID, text)
	default:
		return fmt.Errorf("failed to load active session: %w", err)
	}
}

// HandleTimer resumes a session suspended on a delay node. Delivery is
// at-least-once, so every condition the timer was scheduled under is
// re-checked; a fire that no longer applies is acknowledged silently.
func (e *Engine) HandleTimer(ctx context.Context, conversationID, sessionID, nodeID string) error {
	ctx, span := e.startSpan(ctx, "engine.handle_timer",
		attribute.String(otelhelper.ConversationIDKey, conversationID),
		attribute.String(otelhelper.SessionIDKey, sessionID),
		attribute.String(otelhelper.NodeIDKey, nodeID))
	defer span.End()

	release, err := e.locker.Lock(ctx, conversationID)
	if err != nil {
		return err
	}
	defer release()

	session, err := e.persistence.SessionRepository().SessionByID(ctx, sessionID)
	if err != nil {
		if persistence.IsSessionNotFound(err) {
			return nil
		}

		return fmt.Errorf("failed to load session for timer: %w", err)
	}

	if !session.IsActive || session.State != models.SessionAwaitingTimer ||
		session.CurrentNodeID != nodeID ||
		session.ResumeAt == nil || session.ResumeAt.After(e.now()) {
		e.logger.Debug("Stale timer fire ignored",
			"session_id", sessionID,
			"node_id", nodeID,
			"state", session.State)

		return nil
	}

	return e.resume(ctx, session, nodes.Input{TimerFired: true, Now: e.now()})
}

// StartManually starts a flow for a conversation on behalf of an operator,
// bypassing trigger matching. The flow must be active and published and the
// conversation must not already have an active session.
func (e *Engine) StartManually(ctx context.Context, organizationID, flowID, conversationID, startedBy string) error {
	ctx, span := e.startSpan(ctx, "engine.start_manually",
		attribute.String(otelhelper.ConversationIDKey, conversationID),
		attribute.String(otelhelper.FlowIDKey, flowID))
	defer span.End()

	release, err := e.locker.Lock(ctx, conversationID)
	if err != nil {
		return err
	}
	defer release()

	flow, err := e.persistence.FlowRepository().FlowByID(ctx, organizationID, flowID)
	if err != nil {
		return fmt.Errorf("failed to load flow %s: %w", flowID, err)
	}

	if !flow.IsActive || flow.IsDraft {
		return ErrFlowNotStartable
	}

	return e.startSession(ctx, flow, conversationID, startedBy)
}

// Cancel terminates the conversation's active session, if any, dropping its
// pending timers. Cancelling a conversation without an active session is a
// no-op.
func (e *Engine) Cancel(ctx context.Context, conversationID, requestedBy string) error {
	ctx, span := e.startSpan(ctx, "engine.cancel",
		attribute.String(otelhelper.ConversationIDKey, conversationID))
	defer span.End()

	release, err := e.locker.Lock(ctx, conversationID)
	if err != nil {
		return err
	}
	defer release()

	session, err := e.persistence.SessionRepository().ActiveSessionByConversation(ctx, conversationID)
	if err != nil {
		if persistence.IsSessionNotFound(err) {
			return nil
		}

		return fmt.Errorf("failed to load active session: %w", err)
	}

	e.logger.Info("Session cancelled",
		"session_id", session.ID,
		"conversation_id", conversationID,
		"requested_by", requestedBy)

	return e.finish(ctx, session, models.SessionCancelled, "cancelled by "+requestedBy)
}

// ErrFlowNotStartable is returned by StartManually for inactive or draft flows.
var ErrFlowNotStartable = errors.New("flow is not active or is a draft")

func (e *Engine) startFromTrigger(ctx context.Context, organizationID, connectionID, conversationID, text string) error {
	flows, err := e.persistence.FlowRepository().Flows(ctx, organizationID)
	if err != nil {
		return fmt.Errorf("failed to list flows for organization %s: %w", organizationID, err)
	}

	matched := e.matcher.Match(flows, connectionID, text)
	if matched == nil {
		return nil
	}

	// Flows listings omit the graph; reload with nodes and edges.
	flow, err := e.persistence.FlowRepository().FlowGraph(ctx, matched.ID)
	if err != nil {
		return fmt.Errorf("failed to load flow graph %s: %w", matched.ID, err)
	}

	return e.startSession(ctx, flow, conversationID, "")
}

func (e *Engine) startSession(ctx context.Context, flow *models.Flow, conversationID, startedBy string) error {
	start, ok := startNode(flow)
	if !ok {
		return fmt.Errorf("flow %s has no start node", flow.ID)
	}

	session := &models.Session{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		FlowID:         flow.ID,
		CurrentNodeID:  start.NodeID,
		Variables:      make(map[string]string),
		State:          models.SessionRunning,
		IsActive:       true,
		StartedAt:      e.now(),
		StartedBy:      startedBy,
	}

	err := e.persistence.SessionRepository().CreateSession(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	e.logger.Info("Session started",
		"session_id", session.ID,
		"flow_id", flow.ID,
		"conversation_id", conversationID,
		"started_by", startedBy)

	e.publish(ctx, conversationID, &events.SessionStarted{
		BaseEvent: e.baseEvent(events.SessionStartedEvent, conversationID),
		SessionID: session.ID,
		FlowID:    flow.ID,
		StartedBy: startedBy,
	})

	return e.runLoop(ctx, flow, session, nodes.Input{Now: e.now()})
}

func (e *Engine) resume(ctx context.Context, session *models.Session, input nodes.Input) error {
	flow, err := e.persistence.FlowRepository().FlowGraph(ctx, session.FlowID)
	if err != nil {
		if persistence.IsFlowNotFound(err) {
			return e.finish(ctx, session, models.SessionFailed, "flow no longer exists")
		}

		return fmt.Errorf("failed to load flow graph %s: %w", session.FlowID, err)
	}

	session.State = models.SessionRunning
	session.ResumeAt = nil

	return e.runLoop(ctx, flow, session, input)
}

// runLoop evaluates nodes until the session suspends or terminates. The
// external input (reply or timer fire) is consumed by the first evaluation
// only; subsequent nodes in the same resume see a bare step.
func (e *Engine) runLoop(ctx context.Context, flow *models.Flow, session *models.Session, input nodes.Input) error {
	for step := 0; step < MaxSteps; step++ {
		node, ok := flow.NodeByID(session.CurrentNodeID)
		if !ok {
			return e.finish(ctx, session, models.SessionFailed,
				fmt.Sprintf("node %s not found in flow", session.CurrentNodeID))
		}

		ctx, span := e.startSpan(ctx, "engine.step",
			attribute.String(otelhelper.SessionIDKey, session.ID),
			attribute.String(otelhelper.NodeIDKey, node.NodeID),
			attribute.String(otelhelper.NodeTypeKey, string(node.Type)))

		result, err := e.registry.Evaluate(ctx, nodes.Request{
			Flow:    flow,
			Node:    node,
			Session: session,
			Input:   input,
		})
		if err != nil {
			otelhelper.SetError(span, err)
			span.End()

			e.logger.Error("Node evaluation failed",
				"session_id", session.ID,
				"node_id", node.NodeID,
				"node_type", node.Type,
				"error", err)

			return e.finish(ctx, session, models.SessionFailed,
				fmt.Sprintf("node %s evaluation failed: %v", node.NodeID, err))
		}

		e.applyEffects(ctx, session.ConversationID, result.Effects)
		span.End()

		input = nodes.Input{Now: e.now()}

		decision := result.Decision

		switch decision.Kind {
		case models.DecisionAdvance:
			session.CurrentNodeID = decision.NextNodeID

			err = e.persistSession(ctx, session)
			if err != nil {
				return err
			}

		case models.DecisionAwaitInput:
			session.State = models.SessionAwaitingInput

			err = e.persistSession(ctx, session)
			if err != nil {
				return err
			}

			e.publish(ctx, session.ConversationID, &events.SessionSuspended{
				BaseEvent: e.baseEvent(events.SessionSuspendedEvent, session.ConversationID),
				SessionID: session.ID,
				FlowID:    session.FlowID,
				NodeID:    session.CurrentNodeID,
				State:     session.State,
			})

			return nil

		case models.DecisionSuspend:
			resumeAt := decision.ResumeAt
			session.State = models.SessionAwaitingTimer
			session.ResumeAt = &resumeAt

			err = e.persistSession(ctx, session)
			if err != nil {
				return err
			}

			err = e.timers.ScheduleAt(ctx, session.ConversationID, session.ID, session.CurrentNodeID, resumeAt)
			if err != nil {
				return fmt.Errorf("failed to schedule resume timer: %w", err)
			}

			e.publish(ctx, session.ConversationID, &events.SessionSuspended{
				BaseEvent: e.baseEvent(events.SessionSuspendedEvent, session.ConversationID),
				SessionID: session.ID,
				FlowID:    session.FlowID,
				NodeID:    session.CurrentNodeID,
				State:     session.State,
				ResumeAt:  &resumeAt,
			})

			return nil

		case models.DecisionTerminate:
			return e.finish(ctx, session, decision.End, decision.EndReason)

		default:
			return e.finish(ctx, session, models.SessionFailed,
				fmt.Sprintf("unknown decision kind %q", decision.Kind))
		}
	}

	return e.finish(ctx, session, models.SessionFailed, "flow loop detected")
}

// finish moves the session into a terminal state, persists it, removes
// pending timers and publishes the matching lifecycle event.
func (e *Engine) finish(ctx context.Context, session *models.Session, state models.SessionState, reason string) error {
	endedAt := e.now()
	session.State = state
	session.IsActive = false
	session.FailureReason = ""
	session.ResumeAt = nil
	session.EndedAt = &endedAt

	if state == models.SessionFailed {
		session.FailureReason = reason
	}

	err := e.persistSession(ctx, session)
	if err != nil {
		return err
	}

	err = e.persistence.TimerRepository().DeleteTimersForSession(ctx, session.ID)
	if err != nil {
		e.logger.Warn("Failed to drop pending timers for finished session",
			"session_id", session.ID,
			"error", err)
	}

	e.logger.Info("Session finished",
		"session_id", session.ID,
		"conversation_id", session.ConversationID,
		"state", state,
		"reason", reason)

	ended := events.SessionEnded{
		BaseEvent: e.baseEvent(eventTypeForEnd(state), session.ConversationID),
		SessionID: session.ID,
		FlowID:    session.FlowID,
		State:     state,
		Reason:    reason,
	}

	switch state {
	case models.SessionCancelled:
		e.publish(ctx, session.ConversationID, &events.SessionCancelled{SessionEnded: ended})
	case models.SessionFailed:
		e.publish(ctx, session.ConversationID, &events.SessionFailed{SessionEnded: ended})
	default:
		e.publish(ctx, session.ConversationID, &events.SessionCompleted{SessionEnded: ended})
	}

	return nil
}

// persistSession writes the session through the optimistic store. A conflict
// means another writer (the maintenance sweeper, typically) moved the session
// between our read and write; the write is retried once against the fresh
// state version since the conversation lock guarantees no competing step.
func (e *Engine) persistSession(ctx context.Context, session *models.Session) error {
	repo := e.persistence.SessionRepository()

	err := repo.UpdateSession(ctx, session)
	if err == nil {
		return nil
	}

	if !persistence.IsSessionConflict(err) {
		return fmt.Errorf("failed to persist session %s: %w", session.ID, err)
	}

	current, readErr := repo.SessionByID(ctx, session.ID)
	if readErr != nil {
		return fmt.Errorf("failed to re-read session %s after conflict: %w", session.ID, readErr)
	}

	if current.State.Terminal() {
		return fmt.Errorf("session %s was terminated concurrently: %w", session.ID, persistence.ErrSessionConflict)
	}

	session.StateVersion = current.StateVersion

	err = repo.UpdateSession(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to persist session %s after retry: %w", session.ID, err)
	}

	return nil
}

// applyEffects dispatches the evaluator's outbound effects in order. Effect
// failures are logged and skipped; a broken side channel must not fail the
// session mid-flow.
func (e *Engine) applyEffects(ctx context.Context, conversationID string, effects []models.Effect) {
	for _, effect := range effects {
		var err error

		switch effect.Type {
		case models.EffectSendMessage:
			err = e.messenger.SendMessage(ctx, conversationID, protocol.OutboundMessage{
				Text:      effect.Text,
				Media:     effect.Media,
				Gallery:   effect.Gallery,
				ItemDelay: effect.ItemDelay,
			})
		case models.EffectTyping:
			err = e.messenger.SendTyping(ctx, conversationID)
		case models.EffectSetTag:
			if effect.RemoveTag {
				err = e.crm.RemoveTag(ctx, conversationID, effect.Tag)
			} else {
				err = e.crm.AddTag(ctx, conversationID, effect.Tag)
			}
		case models.EffectSendEmail:
			err = e.email.Send(ctx, effect.EmailTo, effect.EmailSubject, effect.EmailBody)
		case models.EffectNotify:
			err = e.crm.Notify(ctx, conversationID, effect.NotifyTarget, effect.NotifyMessage, effect.NotifyExternal)
		case models.EffectCreateTask:
			err = e.crm.CreateTask(ctx, conversationID, effect.TaskTitle, effect.TaskDescription)
		case models.EffectTransfer:
			err = e.crm.TransferConversation(ctx, conversationID, effect.TransferKind, effect.TransferID)
		case models.EffectCloseConv:
			err = e.crm.CloseConversation(ctx, conversationID)
		default:
			e.logger.Warn("Unknown effect type skipped", "effect_type", effect.Type)

			continue
		}

		if err != nil {
			e.logger.Error("Effect application failed",
				"conversation_id", conversationID,
				"effect_type", effect.Type,
				"error", err)
		}
	}
}

func (e *Engine) publish(ctx context.Context, conversationID string, event eventbus.Event) {
	err := e.publisher.Publish(ctx, conversationID, event)
	if err != nil {
		e.logger.Error("Failed to publish event",
			"event_type", event.GetType(),
			"conversation_id", conversationID,
			"error", err)
	}
}

func (e *Engine) baseEvent(eventType events.EventType, conversationID string) events.BaseEvent {
	return events.BaseEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Type:           eventType,
		Timestamp:      e.now(),
		ConversationID: conversationID,
	}
}

// startSpan is a nil-safe tracer wrapper so tests can run without otel wiring.
func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if e.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return otelhelper.StartSpan(ctx, e.tracer, name, attrs...)
}

func eventTypeForEnd(state models.SessionState) events.EventType {
	switch state {
	case models.SessionCancelled:
		return events.SessionCancelledEvent
	case models.SessionFailed:
		return events.SessionFailedEvent
	default:
		return events.SessionCompletedEvent
	}
}

func startNode(flow *models.Flow) (*models.Node, bool) {
	for _, n := range flow.Nodes {
		if n.Type == models.NodeTypeStart {
			return n, true
		}
	}

	return flow.NodeByID(models.StartNodeID)
}
