// Package main provides the flowengine worker: it consumes engine input
// events from the bus, drives the session engine and runs the timer
// scheduler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/zapdesk/flowengine/pkg/engine"
	"github.com/zapdesk/flowengine/pkg/eventbus"
	"github.com/zapdesk/flowengine/pkg/events"
	"github.com/zapdesk/flowengine/pkg/scheduler"
)

// Worker binds the engine's entry points to the event bus and owns the
// scheduler's lifecycle.
type Worker struct {
	workerID  string
	engine    *engine.Engine
	eventBus  eventbus.EventBus
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

func NewWorker(
	workerID string,
	eng *engine.Engine,
	eventBus eventbus.EventBus,
	sched *scheduler.Scheduler,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		workerID:  workerID,
		engine:    eng,
		eventBus:  eventBus,
		scheduler: sched,
		logger:    logger,
	}
}

// Start registers the event handlers, subscribes to the bus and blocks until
// the process receives an interrupt.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.registerHandlers()

	err := w.eventBus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to event bus: %w", err)
	}

	err = w.scheduler.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	w.logger.InfoContext(ctx, "Worker started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		w.logger.InfoContext(ctx, "Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	w.scheduler.Stop()

	return nil
}

func (w *Worker) registerHandlers() {
	w.eventBus.Handle(events.MessageReceivedEvent, func(ctx context.Context, event any) error {
		received, ok := event.(*events.MessageReceived)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event, events.MessageReceivedEvent)
		}

		return w.engine.HandleInbound(ctx,
			received.OrganizationID, received.ConnectionID, received.ConversationID, received.Text)
	})

	w.eventBus.Handle(events.TimerFiredEvent, func(ctx context.Context, event any) error {
		fired, ok := event.(*events.TimerFired)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event, events.TimerFiredEvent)
		}

		return w.engine.HandleTimer(ctx, fired.ConversationID, fired.SessionID, fired.NodeID)
	})

	w.eventBus.Handle(events.StartRequestedEvent, func(ctx context.Context, event any) error {
		requested, ok := event.(*events.StartRequested)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event, events.StartRequestedEvent)
		}

		err := w.engine.StartManually(ctx,
			requested.OrganizationID, requested.FlowID, requested.ConversationID, requested.StartedBy)
		if err != nil {
			// A start that lost the race against a trigger or another
			// operator must not be redelivered.
			w.logger.WarnContext(ctx, "Manual start rejected",
				"flow_id", requested.FlowID,
				"conversation_id", requested.ConversationID,
				"error", err)
		}

		return nil
	})

	w.eventBus.Handle(events.CancelRequestedEvent, func(ctx context.Context, event any) error {
		cancel, ok := event.(*events.CancelRequested)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event, events.CancelRequestedEvent)
		}

		return w.engine.Cancel(ctx, cancel.ConversationID, cancel.RequestedBy)
	})
}
