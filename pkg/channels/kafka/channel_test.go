package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/flowengine/pkg/events"
)

func TestConversationMarshalerSetsPartitionKey(t *testing.T) {
	marshaler := conversationMarshaler()

	msg := message.NewMessage(watermill.NewUUID(), []byte(`{}`))
	msg.Metadata.Set(events.EventKeyMetadataKey, "conv-1")

	produced, err := marshaler.Marshal(events.Topic, msg)
	require.NoError(t, err)

	require.NotNil(t, produced.Key)

	key, err := produced.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "conv-1", string(key))
}

func TestConversationMarshalerRoundTripsMetadata(t *testing.T) {
	marshaler := conversationMarshaler()

	msg := message.NewMessage(watermill.NewUUID(), []byte(`{"hello":"world"}`))
	msg.Metadata.Set(events.EventKeyMetadataKey, "conv-2")
	msg.Metadata.Set(events.EventTypeMetadataKey, string(events.MessageReceivedEvent))

	produced, err := marshaler.Marshal(events.Topic, msg)
	require.NoError(t, err)

	require.NotNil(t, produced.Key)

	key, err := produced.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "conv-2", string(key))

	payload, err := produced.Value.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, string(payload))
}
