package models

import (
	"encoding/json"
	"time"
)

// Event types on the record streams. The inbound stream carries the
// collaborator's record changes; the outbound stream carries resolution
// decisions.
const (
	EventClientCreated  = "client.created"
	EventClientUpdated  = "client.updated"
	EventClientDeleted  = "client.deleted"
	EventActivityLogged = "activity.logged"
	EventClientMerged   = "client.merged"
)

// RecordEvent is one message on the collaborator's client-records stream.
// Data carries the full record payload for creates/updates and is empty for
// deletes.
type RecordEvent struct {
	EventType  string          `json:"event_type"`
	ClientID   string          `json:"client_id"`
	ActivityID string          `json:"activity_id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}
