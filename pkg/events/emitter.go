package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Publisher is the outbound stream surface the emitter writes through.
type Publisher interface {
	Publish(ctx context.Context, eventType, clientID string, payload any) error
}

// Emitter publishes resolution decisions to the resolution-events stream so
// collaborating systems can mirror merges and deletions.
type Emitter struct {
	producer Publisher
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitClientMerged publishes a client.merged event keyed by the survivor.
func (e *Emitter) EmitClientMerged(ctx context.Context, outcome models.MergeOutcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return err
	}

	event := models.RecordEvent{
		EventType: models.EventClientMerged,
		ClientID:  outcome.SurvivorID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	if err := e.producer.Publish(ctx, event.EventType, event.ClientID, event); err != nil {
		return err
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"survivor_id": outcome.SurvivorID,
		"absorbed":    len(outcome.AbsorbedIDs),
	}).Debug("Emitted merge event")
	return nil
}

// EmitClientDeleted publishes a client.deleted event for API deletions.
func (e *Emitter) EmitClientDeleted(ctx context.Context, clientID string) error {
	event := models.RecordEvent{
		EventType: models.EventClientDeleted,
		ClientID:  clientID,
		Timestamp: time.Now().UTC(),
	}
	return e.producer.Publish(ctx, event.EventType, event.ClientID, event)
}
