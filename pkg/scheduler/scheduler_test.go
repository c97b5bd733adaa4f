package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/flowengine/pkg/eventbus"
	"github.com/zapdesk/flowengine/pkg/events"
	"github.com/zapdesk/flowengine/pkg/mocks"
	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/persistence/memory"
	"github.com/zapdesk/flowengine/pkg/testutil"
)

type capturingPublisher struct {
	mu      sync.Mutex
	events  []eventbus.Event
	failFor map[string]error
}

func (p *capturingPublisher) Publish(_ context.Context, key string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err, ok := p.failFor[key]; ok {
		return err
	}

	p.events = append(p.events, event)

	return nil
}

func newTestScheduler(store *memory.Persistence, publisher *capturingPublisher, now time.Time) *Scheduler {
	return NewScheduler(
		store.TimerRepository(),
		store.SessionRepository(),
		publisher,
		slog.Default(),
		WithClock(func() time.Time { return now }),
	)
}

func TestScheduleAtPersistsDurableTimer(t *testing.T) {
	store := memory.NewPersistence()
	now := time.Now().UTC()
	s := newTestScheduler(store, &capturingPublisher{}, now)

	fireAt := now.Add(10 * time.Minute)
	require.NoError(t, s.ScheduleAt(context.Background(), "conv-1", "s1", "wait", fireAt))

	due, err := store.TimerRepository().DueTimers(context.Background(), fireAt)
	require.NoError(t, err)

	require.Len(t, due, 1)
	assert.Equal(t, "conv-1", due[0].ConversationID)
	assert.Equal(t, "s1", due[0].SessionID)
	assert.Equal(t, "wait", due[0].NodeID)
	assert.Equal(t, fireAt, due[0].FireAt)
}

func TestFireDueTimersPublishesOnlyDueOnes(t *testing.T) {
	store := memory.NewPersistence()
	publisher := &capturingPublisher{}
	now := time.Now().UTC()
	s := newTestScheduler(store, publisher, now)

	require.NoError(t, s.ScheduleAt(context.Background(), "conv-1", "s1", "wait", now.Add(-time.Minute)))
	require.NoError(t, s.ScheduleAt(context.Background(), "conv-2", "s2", "wait", now.Add(time.Hour)))

	s.fireDueTimers(context.Background())

	require.Len(t, publisher.events, 1)

	fired, ok := publisher.events[0].(*events.TimerFired)
	require.True(t, ok)
	assert.Equal(t, "s1", fired.SessionID)
	assert.Equal(t, "wait", fired.NodeID)
	assert.Equal(t, "conv-1", fired.ConversationID)

	// The due timer was claimed; a second poll finds nothing new.
	s.fireDueTimers(context.Background())
	assert.Len(t, publisher.events, 1)
}

func TestFireDueTimersPublishFailureDoesNotBlockOthers(t *testing.T) {
	store := memory.NewPersistence()
	publisher := &capturingPublisher{
		failFor: map[string]error{"conv-broken": errors.New("broker down")},
	}
	now := time.Now().UTC()
	s := newTestScheduler(store, publisher, now)

	require.NoError(t, s.ScheduleAt(context.Background(), "conv-broken", "s1", "wait", now.Add(-2*time.Minute)))
	require.NoError(t, s.ScheduleAt(context.Background(), "conv-ok", "s2", "wait", now.Add(-time.Minute)))

	s.fireDueTimers(context.Background())

	require.Len(t, publisher.events, 1)
	fired := publisher.events[0].(*events.TimerFired)
	assert.Equal(t, "s2", fired.SessionID)
}

func TestSweepStaleSessionsRequestsCancellation(t *testing.T) {
	publisher := &capturingPublisher{}
	now := time.Now().UTC()

	flow := testutil.CreateTestFlow()
	stale := testutil.CreateTestSession(flow, testutil.AwaitingAt("menu"))
	stale.ConversationID = "conv-stale"

	sessions := &mocks.MockSessionRepository{}
	sessions.On("StaleAwaitingSessions", mock.Anything, now.Add(-DefaultStaleAfter)).
		Return([]*models.Session{stale}, nil)

	s := NewScheduler(
		&mocks.MockTimerRepository{},
		sessions,
		publisher,
		slog.Default(),
		WithClock(func() time.Time { return now }),
	)

	s.sweepStaleSessions(context.Background())

	require.Len(t, publisher.events, 1)

	cancel, ok := publisher.events[0].(*events.CancelRequested)
	require.True(t, ok)
	assert.Equal(t, "conv-stale", cancel.ConversationID)
	assert.Equal(t, "system:session_sweeper", cancel.RequestedBy)
	sessions.AssertExpectations(t)
}

func TestSweepListFailureIsLoggedNotFatal(t *testing.T) {
	publisher := &capturingPublisher{}

	sessions := &mocks.MockSessionRepository{}
	sessions.On("StaleAwaitingSessions", mock.Anything, mock.Anything).
		Return(nil, errors.New("store down"))

	s := NewScheduler(&mocks.MockTimerRepository{}, sessions, publisher, slog.Default())

	s.sweepStaleSessions(context.Background())
	assert.Empty(t, publisher.events)
}

func TestStartAndStopTerminateCleanly(t *testing.T) {
	store := memory.NewPersistence()
	s := NewScheduler(
		store.TimerRepository(),
		store.SessionRepository(),
		&capturingPublisher{},
		slog.Default(),
		WithPollInterval(10*time.Millisecond),
	)

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	s.Stop()
}
