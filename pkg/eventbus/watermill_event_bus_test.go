package eventbus

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/flowengine/pkg/channels/gochannel"
	"github.com/zapdesk/flowengine/pkg/events"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NewSlogLogger(slog.Default()))
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		err := bus.Close()
		if err != nil {
			t.Logf("Failed to close event bus: %v", err)
		}
	})

	return bus
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan any, 1)
	bus.Handle(events.MessageReceivedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	sent := &events.MessageReceived{
		BaseEvent: events.BaseEvent{
			ID:             bus.GenerateID(),
			Type:           events.MessageReceivedEvent,
			Timestamp:      time.Now().UTC(),
			ConversationID: "conv-1",
		},
		OrganizationID: "org-1",
		ConnectionID:   "conn-1",
		Text:           "oi",
	}

	require.NoError(t, bus.Publish(ctx, "conv-1", sent))

	select {
	case event := <-received:
		got, ok := event.(*events.MessageReceived)
		require.True(t, ok)
		assert.Equal(t, "org-1", got.OrganizationID)
		assert.Equal(t, "conn-1", got.ConnectionID)
		assert.Equal(t, "oi", got.Text)
		assert.Equal(t, "conv-1", got.ConversationID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestUnhandledEventTypesAreDropped(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan any, 1)
	bus.Handle(events.TimerFiredEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for cancel requests.
	cancelEvent := &events.CancelRequested{
		BaseEvent: events.BaseEvent{
			ID:             bus.GenerateID(),
			Type:           events.CancelRequestedEvent,
			Timestamp:      time.Now().UTC(),
			ConversationID: "conv-1",
		},
		RequestedBy: "agent:42",
	}
	require.NoError(t, bus.Publish(ctx, "conv-1", cancelEvent))

	fired := &events.TimerFired{
		BaseEvent: events.BaseEvent{
			ID:             bus.GenerateID(),
			Type:           events.TimerFiredEvent,
			Timestamp:      time.Now().UTC(),
			ConversationID: "conv-1",
		},
		SessionID: "s1",
		NodeID:    "wait",
	}
	require.NoError(t, bus.Publish(ctx, "conv-1", fired))

	select {
	case event := <-received:
		got, ok := event.(*events.TimerFired)
		require.True(t, ok)
		assert.Equal(t, "s1", got.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("timer event was not delivered")
	}
}

func TestGenerateIDIsUnique(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
