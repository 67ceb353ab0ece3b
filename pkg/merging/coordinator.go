package merging

import (
	"context"
	"database/sql"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// lockTTL bounds how long a crashed merge can hold its clients.
	lockTTL = 30 * time.Second
	// lockWait bounds how long a merge waits on an overlapping merge.
	lockWait = 5 * time.Second
)

// ClientStore is the slice of client persistence a merge needs.
type ClientStore interface {
	DB() database.DB
	GetByIDs(ctx context.Context, ids []string) ([]models.Client, error)
	UpdateContactCount(ctx context.Context, id string, contactCount int) error
	Delete(ctx context.Context, id string) error
}

// ActivityStore re-points logged encounters during a merge.
type ActivityStore interface {
	Reassign(ctx context.Context, fromClientID, toClientID string) (int64, error)
}

// Locker serializes merges whose client sets overlap.
type Locker interface {
	WithLocks(ctx context.Context, keys []string, ttl, timeout time.Duration, fn func() error) error
}

// Emitter publishes the post-commit merge event.
type Emitter interface {
	EmitClientMerged(ctx context.Context, outcome models.MergeOutcome) error
}

// Coordinator runs merges: every activity of the absorbed records moves to
// the survivor, the survivor takes the combined contact count, and the
// absorbed records are deleted, all in one transaction.
type Coordinator struct {
	clients    ClientStore
	activities ActivityStore
	locker     Locker
	emitter    Emitter
	logger     ectologger.Logger
}

// NewCoordinator creates a new merge coordinator
func NewCoordinator(clients ClientStore, activities ActivityStore, locker Locker, emitter Emitter, logger ectologger.Logger) *Coordinator {
	return &Coordinator{
		clients:    clients,
		activities: activities,
		locker:     locker,
		emitter:    emitter,
		logger:     logger,
	}
}

// Merge consolidates req.MemberIDs into req.SurvivorID. On any failure the
// transaction rolls back and the roster is untouched; a merge either fully
// happens or not at all.
func (c *Coordinator) Merge(ctx context.Context, req models.MergeRequest) (*models.MergeOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Coordinator.Merge")
	defer span.End()

	start := time.Now()
	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"survivor_id":  req.SurvivorID,
		"member_count": len(req.MemberIDs),
	})

	if err := validateRequest(req); err != nil {
		metrics.RecordMerge("rejected", time.Since(start).Seconds())
		return nil, err
	}

	keys := make([]string, 0, len(req.MemberIDs))
	for _, id := range req.MemberIDs {
		keys = append(keys, "merge:client:"+id)
	}

	var outcome *models.MergeOutcome
	err := c.locker.WithLocks(ctx, keys, lockTTL, lockWait, func() error {
		result, err := c.mergeLocked(ctx, req)
		if err != nil {
			return err
		}
		outcome = result
		return nil
	})
	if err != nil {
		// Merge steps always fail with a MergeError; anything else came
		// from lock acquisition.
		if !IsMergeError(err) {
			err = WrapMergeError(err).AddStep(StepLock)
		}
		log.WithError(err).Error("Merge failed")
		metrics.RecordMerge("failed", time.Since(start).Seconds())
		return nil, err
	}

	metrics.RecordMerge("committed", time.Since(start).Seconds())
	metrics.MergeActivitiesReassigned.Add(float64(outcome.ActivitiesReassigned))
	metrics.MergeClientsAbsorbed.Add(float64(len(outcome.AbsorbedIDs)))

	if c.emitter != nil {
		if err := c.emitter.EmitClientMerged(ctx, *outcome); err != nil {
			// The merge is committed; a lost event must not undo it.
			log.WithError(err).Warn("Failed to emit merge event")
		}
	}

	log.WithFields(map[string]any{
		"absorbed_ids":          outcome.AbsorbedIDs,
		"activities_reassigned": outcome.ActivitiesReassigned,
		"contact_count":         outcome.ContactCount,
	}).Info("Merged clients")

	return outcome, nil
}

// mergeLocked runs the transactional steps. Callers hold locks on every
// member ID.
func (c *Coordinator) mergeLocked(ctx context.Context, req models.MergeRequest) (*models.MergeOutcome, error) {
	ctxTx, tx, err := c.clients.DB().GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, WrapMergeError(err).AddStep(StepBegin)
	}
	defer tx.Rollback(ctxTx)

	members, err := c.clients.GetByIDs(ctxTx, req.MemberIDs)
	if err != nil {
		return nil, WrapMergeError(err).AddStep(StepFetch)
	}

	byID := make(map[string]models.Client, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	for _, id := range req.MemberIDs {
		if _, ok := byID[id]; !ok {
			return nil, NewMergeErrorf("client %s not found", id).AddStep(StepValidate).AddClient(id)
		}
	}

	contactCount := 0
	for _, m := range members {
		contactCount += m.ContactCount
	}

	absorbed := make([]string, 0, len(req.MemberIDs)-1)
	var reassigned int64
	for _, id := range req.MemberIDs {
		if id == req.SurvivorID {
			continue
		}
		moved, err := c.activities.Reassign(ctxTx, id, req.SurvivorID)
		if err != nil {
			return nil, WrapMergeError(err).AddStep(StepReassign).AddClient(id)
		}
		reassigned += moved
		absorbed = append(absorbed, id)
	}

	if err := c.clients.UpdateContactCount(ctxTx, req.SurvivorID, contactCount); err != nil {
		return nil, WrapMergeError(err).AddStep(StepContactCount).AddClient(req.SurvivorID)
	}

	for _, id := range absorbed {
		if err := c.clients.Delete(ctxTx, id); err != nil {
			return nil, WrapMergeError(err).AddStep(StepDelete).AddClient(id)
		}
	}

	if err := tx.Commit(ctxTx); err != nil {
		return nil, WrapMergeError(err).AddStep(StepCommit)
	}

	return &models.MergeOutcome{
		SurvivorID:           req.SurvivorID,
		AbsorbedIDs:          absorbed,
		ActivitiesReassigned: reassigned,
		ContactCount:         contactCount,
		MergedAt:             time.Now().UTC(),
	}, nil
}

func validateRequest(req models.MergeRequest) *MergeError {
	if len(req.MemberIDs) < 2 {
		return NewMergeError("a merge needs at least two members").AddStep(StepValidate)
	}
	if req.SurvivorID == "" {
		return NewMergeError("survivor_id is required").AddStep(StepValidate)
	}

	seen := make(map[string]struct{}, len(req.MemberIDs))
	survivorListed := false
	for _, id := range req.MemberIDs {
		if id == "" {
			return NewMergeError("member_ids cannot contain blanks").AddStep(StepValidate)
		}
		if _, ok := seen[id]; ok {
			return NewMergeErrorf("client %s is listed twice", id).AddStep(StepValidate).AddClient(id)
		}
		seen[id] = struct{}{}
		if id == req.SurvivorID {
			survivorListed = true
		}
	}
	if !survivorListed {
		return NewMergeErrorf("survivor %s must be one of the members", req.SurvivorID).AddStep(StepValidate).AddClient(req.SurvivorID)
	}
	return nil
}
