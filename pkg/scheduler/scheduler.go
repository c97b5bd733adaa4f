// Package scheduler persists durable timers for delayed sessions and turns
// them back into events when they come due. It also sweeps sessions that have
// been awaiting input for too long.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/zapdesk/flowengine/pkg/eventbus"
	"github.com/zapdesk/flowengine/pkg/events"
	"github.com/zapdesk/flowengine/pkg/persistence"
)

const (
	// DefaultPollInterval is how often due timers are claimed.
	DefaultPollInterval = 1 * time.Second

	// DefaultStaleAfter is how long an awaiting_input session may sit idle
	// before the sweeper cancels it.
	DefaultStaleAfter = 24 * time.Hour

	sweepSpec = "@every 5m"

	sweeperActor = "system:session_sweeper"
)

// Scheduler owns the durable timer lifecycle. It implements
// protocol.TimerScheduler for the engine side and runs the polling loop that
// publishes TimerFired events for the worker side.
type Scheduler struct {
	timers    persistence.TimerRepository
	sessions  persistence.SessionRepository
	publisher eventbus.EventPublisher
	logger    *slog.Logger

	pollInterval time.Duration
	staleAfter   time.Duration
	now          func() time.Time

	cron *cron.Cron
	stop chan struct{}
	done chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPollInterval overrides the due-timer poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.pollInterval = d }
}

// WithStaleAfter overrides the awaiting-input idle cutoff.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Scheduler) { s.staleAfter = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler.
func NewScheduler(timers persistence.TimerRepository, sessions persistence.SessionRepository, publisher eventbus.EventPublisher, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		timers:       timers,
		sessions:     sessions,
		publisher:    publisher,
		logger:       logger.With("module", "scheduler"),
		pollInterval: DefaultPollInterval,
		staleAfter:   DefaultStaleAfter,
		now:          time.Now,
		cron:         cron.New(),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ScheduleAt persists a durable timer that resumes the session at fireAt.
func (s *Scheduler) ScheduleAt(ctx context.Context, conversationID, sessionID, nodeID string, fireAt time.Time) error {
	timer := &persistence.Timer{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		SessionID:      sessionID,
		NodeID:         nodeID,
		FireAt:         fireAt,
		CreatedAt:      s.now(),
	}

	err := s.timers.SaveTimer(ctx, timer)
	if err != nil {
		return fmt.Errorf("failed to persist timer: %w", err)
	}

	s.logger.Debug("Timer scheduled",
		"timer_id", timer.ID,
		"session_id", sessionID,
		"fire_at", fireAt)

	return nil
}

// Start runs the due-timer poll loop and the stale-session sweep until Stop
// is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(sweepSpec, func() {
		s.sweepStaleSessions(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}

	s.cron.Start()

	go s.pollLoop(ctx)

	s.logger.Info("Scheduler started",
		"poll_interval", s.pollInterval,
		"stale_after", s.staleAfter)

	return nil
}

// Stop halts the poll loop and the sweeper, waiting for the in-flight poll.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
	<-s.cron.Stop().Done()
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fireDueTimers(ctx)
		}
	}
}

// fireDueTimers claims due timers and publishes a TimerFired event for each.
// A publish failure loses the claim; the engine tolerates that the same way
// it tolerates duplicates, by validating the session at handling time.
func (s *Scheduler) fireDueTimers(ctx context.Context) {
	due, err := s.timers.DueTimers(ctx, s.now())
	if err != nil {
		s.logger.Error("Failed to claim due timers", "error", err)

		return
	}

	for _, timer := range due {
		event := &events.TimerFired{
			BaseEvent: events.BaseEvent{
				ID:             uuid.Must(uuid.NewV7()).String(),
				Type:           events.TimerFiredEvent,
				Timestamp:      s.now(),
				ConversationID: timer.ConversationID,
			},
			SessionID: timer.SessionID,
			NodeID:    timer.NodeID,
		}

		err := s.publisher.Publish(ctx, timer.ConversationID, event)
		if err != nil {
			s.logger.Error("Failed to publish timer fired event",
				"timer_id", timer.ID,
				"session_id", timer.SessionID,
				"error", err)

			continue
		}

		s.logger.Debug("Timer fired",
			"timer_id", timer.ID,
			"session_id", timer.SessionID)
	}
}

// sweepStaleSessions requests cancellation of sessions that have been
// awaiting input past the idle cutoff.
func (s *Scheduler) sweepStaleSessions(ctx context.Context) {
	cutoff := s.now().Add(-s.staleAfter)

	stale, err := s.sessions.StaleAwaitingSessions(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to list stale sessions", "error", err)

		return
	}

	for _, session := range stale {
		event := &events.CancelRequested{
			BaseEvent: events.BaseEvent{
				ID:             uuid.Must(uuid.NewV7()).String(),
				Type:           events.CancelRequestedEvent,
				Timestamp:      s.now(),
				ConversationID: session.ConversationID,
			},
			RequestedBy: sweeperActor,
		}

		err := s.publisher.Publish(ctx, session.ConversationID, event)
		if err != nil {
			s.logger.Error("Failed to publish cancel request for stale session",
				"session_id", session.ID,
				"error", err)

			continue
		}

		s.logger.Info("Stale session cancel requested",
			"session_id", session.ID,
			"conversation_id", session.ConversationID,
			"idle_since", session.UpdatedAt)
	}
}
