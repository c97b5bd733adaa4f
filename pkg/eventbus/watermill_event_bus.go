package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/zapdesk/flowengine/pkg/events"
)

// WatermillEventBus adapts any watermill publisher/subscriber pair (kafka in
// production, gochannel in tests and local runs) to the EventBus interface.
type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

// Publish sends the event keyed by conversation id so per-conversation
// ordering survives partitioned transports.
func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(events.EventKeyMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) {
	eb.subscriptions[eventType] = handler
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			event := newEvent(eventType)
			if event == nil {
				msg.Nack()

				continue
			}

			err := json.Unmarshal(msg.Payload, event)
			if err != nil {
				msg.Nack()

				continue
			}

			err = handler(ctx, event)
			if err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}

// newEvent allocates the concrete payload for a wire event type.
func newEvent(eventType events.EventType) any {
	switch eventType {
	case events.MessageReceivedEvent:
		return &events.MessageReceived{}
	case events.TimerFiredEvent:
		return &events.TimerFired{}
	case events.StartRequestedEvent:
		return &events.StartRequested{}
	case events.CancelRequestedEvent:
		return &events.CancelRequested{}
	case events.SessionStartedEvent:
		return &events.SessionStarted{}
	case events.SessionSuspendedEvent:
		return &events.SessionSuspended{}
	case events.SessionCompletedEvent:
		return &events.SessionCompleted{}
	case events.SessionCancelledEvent:
		return &events.SessionCancelled{}
	case events.SessionFailedEvent:
		return &events.SessionFailed{}
	default:
		return nil
	}
}
