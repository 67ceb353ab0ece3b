// Package processor mirrors the collaborating case-management system's
// record stream into local storage. Detection and merging read that mirror;
// the processor never resolves duplicates itself.
package processor

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Processor handles record events from the client-records stream
type Processor struct {
	logger     ectologger.Logger
	clients    repositories.ClientRepo
	activities repositories.ActivityRepo
}

// NewProcessor creates a new record event processor
func NewProcessor(logger ectologger.Logger, clients repositories.ClientRepo, activities repositories.ActivityRepo) *Processor {
	return &Processor{
		logger:     logger,
		clients:    clients,
		activities: activities,
	}
}

// ProcessMessage routes one record event. Returning an error leaves the
// message uncommitted for redelivery; unroutable messages are logged and
// dropped instead so the partition never wedges on garbage.
func (p *Processor) ProcessMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.ProcessMessage")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"key":    msg.Key,
		"topic":  msg.Topic,
		"offset": msg.Offset,
	})

	// Parse the record event if not already parsed
	if msg.Event == nil {
		if err := msg.ParseRecordEvent(); err != nil {
			log.WithError(err).Error("Failed to parse record event")
			return err
		}
	}

	eventType := msg.GetEventType()
	clientID := msg.GetClientID()
	if clientID == "" {
		log.Error("Missing client_id in message")
		metrics.RecordIngestEvent(eventType, "skipped")
		return nil // Skip message, don't retry
	}

	log = log.WithFields(map[string]any{"event_type": eventType, "client_id": clientID})

	switch eventType {
	case models.EventClientCreated, models.EventClientUpdated:
		return p.processClientUpsert(ctx, msg, clientID, log)
	case models.EventClientDeleted:
		return p.processClientDelete(ctx, clientID, log)
	case models.EventActivityLogged:
		return p.processActivity(ctx, msg, clientID, log)
	}

	log.Warn("Unknown event type, skipping")
	metrics.RecordIngestEvent(eventType, "skipped")
	return nil
}

func (p *Processor) processClientUpsert(ctx context.Context, msg *kafka.IncomingMessage, clientID string, log ectologger.Logger) error {
	ctx, span := tracing.StartSpan(ctx, "processor.processClientUpsert")
	defer span.End()

	var record models.Client
	if err := json.Unmarshal(msg.Event.Data, &record); err != nil {
		log.WithError(err).Error("Malformed client payload, skipping")
		metrics.RecordIngestEvent(msg.Event.EventType, "malformed")
		return nil // Skip message, don't retry
	}
	record.ID = clientID

	result, err := p.clients.Upsert(ctx, record)
	if err != nil {
		metrics.RecordIngestEvent(msg.Event.EventType, "error")
		return err
	}

	metrics.RecordIngestEvent(msg.Event.EventType, "ok")
	log.WithFields(map[string]any{"is_new": result.IsNew}).Debug("Mirrored client record")
	return nil
}

// processClientDelete removes the client and its activity history in one
// transaction. The collaborator removed the person entirely; keeping orphan
// activities would leak their history.
func (p *Processor) processClientDelete(ctx context.Context, clientID string, log ectologger.Logger) error {
	ctx, span := tracing.StartSpan(ctx, "processor.processClientDelete")
	defer span.End()

	ctxTx, tx, err := p.clients.DB().GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		metrics.RecordIngestEvent(models.EventClientDeleted, "error")
		return err
	}
	defer tx.Rollback(ctxTx)

	removed, err := p.activities.DeleteByClient(ctxTx, clientID)
	if err != nil {
		metrics.RecordIngestEvent(models.EventClientDeleted, "error")
		return err
	}

	if err := p.clients.Delete(ctxTx, clientID); err != nil {
		if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
			// Already gone, likely absorbed by a merge before the event
			// arrived. Nothing to mirror.
			log.Debug("Client already absent, skipping delete")
			metrics.RecordIngestEvent(models.EventClientDeleted, "skipped")
			return nil
		}
		metrics.RecordIngestEvent(models.EventClientDeleted, "error")
		return err
	}

	if err := tx.Commit(ctxTx); err != nil {
		metrics.RecordIngestEvent(models.EventClientDeleted, "error")
		return err
	}

	metrics.RecordIngestEvent(models.EventClientDeleted, "ok")
	log.WithFields(map[string]any{"activities_removed": removed}).Info("Removed client from event")
	return nil
}

func (p *Processor) processActivity(ctx context.Context, msg *kafka.IncomingMessage, clientID string, log ectologger.Logger) error {
	ctx, span := tracing.StartSpan(ctx, "processor.processActivity")
	defer span.End()

	var activity models.Activity
	if err := json.Unmarshal(msg.Event.Data, &activity); err != nil {
		log.WithError(err).Error("Malformed activity payload, skipping")
		metrics.RecordIngestEvent(msg.Event.EventType, "malformed")
		return nil // Skip message, don't retry
	}
	if activity.ID == "" {
		activity.ID = msg.Event.ActivityID
	}
	if activity.ClientID == "" {
		activity.ClientID = clientID
	}

	if _, err := p.activities.Insert(ctx, activity); err != nil {
		// Includes arrivals ahead of their client record; redelivery
		// retries once the client row lands.
		metrics.RecordIngestEvent(msg.Event.EventType, "error")
		return err
	}

	metrics.RecordIngestEvent(msg.Event.EventType, "ok")
	log.WithFields(map[string]any{"activity_id": activity.ID}).Debug("Mirrored activity")
	return nil
}
