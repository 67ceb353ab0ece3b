package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestParseRecordEvent(t *testing.T) {
	t.Run("valid event", func(t *testing.T) {
		msg := &IncomingMessage{
			Value: []byte(`{"event_type":"client.created","client_id":"c1","data":{"first_name":"John"}}`),
		}

		require.NoError(t, msg.ParseRecordEvent())
		require.NotNil(t, msg.Event)
		assert.Equal(t, models.EventClientCreated, msg.Event.EventType)
		assert.Equal(t, "c1", msg.Event.ClientID)
		assert.JSONEq(t, `{"first_name":"John"}`, string(msg.Event.Data))
	})

	t.Run("missing event_type", func(t *testing.T) {
		msg := &IncomingMessage{Value: []byte(`{"client_id":"c1"}`)}

		err := msg.ParseRecordEvent()
		require.Error(t, err)
		assert.Nil(t, msg.Event)
	})

	t.Run("malformed json", func(t *testing.T) {
		msg := &IncomingMessage{Value: []byte(`{"event_type":`)}

		require.Error(t, msg.ParseRecordEvent())
		assert.Nil(t, msg.Event)
	})
}

func TestIncomingMessage_Getters(t *testing.T) {
	t.Run("parsed body wins", func(t *testing.T) {
		msg := &IncomingMessage{
			Key:     "key-client",
			Headers: map[string]string{"event_type": "client.updated"},
			Value:   []byte(`{"event_type":"client.created","client_id":"c1"}`),
		}
		require.NoError(t, msg.ParseRecordEvent())

		assert.Equal(t, models.EventClientCreated, msg.GetEventType())
		assert.Equal(t, "c1", msg.GetClientID())
	})

	t.Run("falls back to header and key", func(t *testing.T) {
		msg := &IncomingMessage{
			Key:     "key-client",
			Headers: map[string]string{"event_type": "client.deleted"},
		}

		assert.Equal(t, models.EventClientDeleted, msg.GetEventType())
		assert.Equal(t, "key-client", msg.GetClientID())
	})
}
