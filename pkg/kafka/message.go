package kafka

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Trace context (extracted from Kafka headers)
	TraceParent string
	TraceState  string

	// Parsed content
	Event *models.RecordEvent
}

// ParseRecordEvent parses the message value as a record event. Events without
// an event_type are rejected; the processor cannot route them.
func (m *IncomingMessage) ParseRecordEvent() error {
	var event models.RecordEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return err
	}
	if event.EventType == "" {
		return errors.New("record event has no event_type")
	}
	m.Event = &event
	return nil
}

// GetEventType returns the event type, preferring the parsed body over the
// header copy producers attach for filtering.
func (m *IncomingMessage) GetEventType() string {
	if m.Event != nil {
		return m.Event.EventType
	}
	return m.Headers["event_type"]
}

// GetClientID returns the subject client ID. Producers key messages by
// client, so the message key doubles as a fallback.
func (m *IncomingMessage) GetClientID() string {
	if m.Event != nil && m.Event.ClientID != "" {
		return m.Event.ClientID
	}
	return m.Key
}
