package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

type fakePublisher struct {
	eventTypes []string
	clientIDs  []string
	payloads   []any
	err        error
}

func (f *fakePublisher) Publish(ctx context.Context, eventType, clientID string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.eventTypes = append(f.eventTypes, eventType)
	f.clientIDs = append(f.clientIDs, clientID)
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestEmitClientMerged(t *testing.T) {
	publisher := &fakePublisher{}
	emitter := NewEmitter(publisher, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))

	outcome := models.MergeOutcome{
		SurvivorID:           "a",
		AbsorbedIDs:          []string{"b", "c"},
		ActivitiesReassigned: 4,
		ContactCount:         8,
		MergedAt:             time.Now().UTC(),
	}

	require.NoError(t, emitter.EmitClientMerged(context.Background(), outcome))
	require.Len(t, publisher.payloads, 1)

	assert.Equal(t, []string{models.EventClientMerged}, publisher.eventTypes)
	assert.Equal(t, []string{"a"}, publisher.clientIDs)

	event, ok := publisher.payloads[0].(models.RecordEvent)
	require.True(t, ok)
	assert.Equal(t, models.EventClientMerged, event.EventType)
	assert.Equal(t, "a", event.ClientID)

	var decoded models.MergeOutcome
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.Equal(t, outcome.AbsorbedIDs, decoded.AbsorbedIDs)
	assert.Equal(t, outcome.ContactCount, decoded.ContactCount)
}

func TestEmitClientDeleted(t *testing.T) {
	publisher := &fakePublisher{}
	emitter := NewEmitter(publisher, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))

	require.NoError(t, emitter.EmitClientDeleted(context.Background(), "c9"))

	assert.Equal(t, []string{models.EventClientDeleted}, publisher.eventTypes)
	assert.Equal(t, []string{"c9"}, publisher.clientIDs)
}

func TestEmitClientMerged_PublishFailure(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker down")}
	emitter := NewEmitter(publisher, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))

	err := emitter.EmitClientMerged(context.Background(), models.MergeOutcome{SurvivorID: "a"})
	assert.Error(t, err)
}
