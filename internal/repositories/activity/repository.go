package activity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles activity persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new activity repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// DB exposes the underlying database handle for transactional operations.
func (r *Repository) DB() database.DB {
	return r.db
}

// Create logs a new activity against a client
func (r *Repository) Create(ctx context.Context, req models.CreateActivityRequest) (*models.Activity, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	occurredAt := now
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC()
	}

	activity := models.Activity{
		ID:         uuid.New().String(),
		ClientID:   req.ClientID,
		Author:     req.Author,
		Category:   req.Category,
		Notes:      req.Notes,
		OccurredAt: occurredAt,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		CreatedAt:  now,
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("activities")
	sb.Cols("id", "client_id", "author", "category", "notes", "occurred_at", "latitude", "longitude", "created_at")
	sb.Values(activity.ID, activity.ClientID, activity.Author, activity.Category, activity.Notes, activity.OccurredAt, activity.Latitude, activity.Longitude, activity.CreatedAt)

	query, args := sb.Build()
	if _, err := database.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"client_id": req.ClientID}).Error("Failed to create activity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create activity")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": activity.ID, "client_id": activity.ClientID}).Info("Created activity")
	return &activity, nil
}

// Get retrieves an activity by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Activity, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "client_id", "author", "category", "notes", "occurred_at", "latitude", "longitude", "created_at")
	sb.From("activities")
	sb.Where(
		sb.Equal("id", id),
	)

	query, args := sb.Build()
	var activity models.Activity
	if err := database.QuerierFromContext(ctx, r.db).GetContext(ctx, &activity, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("activity %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get activity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get activity")
	}

	return &activity, nil
}

// ListByClient returns a page of a client's activities, newest first
func (r *Repository) ListByClient(ctx context.Context, clientID string, page, pageSize int) (*models.ActivityListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.ListByClient")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	// Count total
	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("activities")
	countSb.Where(
		countSb.Equal("client_id", clientID),
	)

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := database.QuerierFromContext(ctx, r.db).GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"client_id": clientID, "page": page, "page_size": pageSize}).Error("Failed to count activities")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count activities")
	}

	// Fetch page
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "client_id", "author", "category", "notes", "occurred_at", "latitude", "longitude", "created_at")
	sb.From("activities")
	sb.Where(
		sb.Equal("client_id", clientID),
	)
	sb.OrderBy("occurred_at DESC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var activities []models.Activity
	if err := database.QuerierFromContext(ctx, r.db).SelectContext(ctx, &activities, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"client_id": clientID, "page": page, "page_size": pageSize}).Error("Failed to list activities")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list activities")
	}

	return &models.ActivityListResponse{
		Items:      activities,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// Reassign moves every activity from one client to another and returns how
// many rows moved. Zero is a valid outcome; a client with no logged
// encounters still merges cleanly.
func (r *Repository) Reassign(ctx context.Context, fromClientID, toClientID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.Reassign")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("activities")
	sb.Set(
		sb.Assign("client_id", toClientID),
	)
	sb.Where(
		sb.Equal("client_id", fromClientID),
	)

	query, args := sb.Build()
	result, err := database.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"from_client_id": fromClientID, "to_client_id": toClientID}).Error("Failed to reassign activities")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign activities")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read reassigned row count")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign activities")
	}
	return rows, nil
}

// DeleteByClient removes every activity of a client and returns how many
// rows went. Runs ahead of a client deletion; the schema blocks deleting a
// client that still has activities.
func (r *Repository) DeleteByClient(ctx context.Context, clientID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.DeleteByClient")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("activities")
	sb.Where(
		sb.Equal("client_id", clientID),
	)

	query, args := sb.Build()
	result, err := database.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"client_id": clientID}).Error("Failed to delete activities")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete activities")
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}

// Insert writes an activity that already has an identity, keeping the write
// idempotent under event redelivery. Replayed IDs are ignored.
func (r *Repository) Insert(ctx context.Context, activity models.Activity) (*models.Activity, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.Insert")
	defer span.End()

	now := time.Now().UTC()
	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}
	if activity.OccurredAt.IsZero() {
		activity.OccurredAt = now
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = now
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto("activities")
	ib.Cols("id", "client_id", "author", "category", "notes", "occurred_at", "latitude", "longitude", "created_at")
	ib.Values(activity.ID, activity.ClientID, activity.Author, activity.Category, activity.Notes, activity.OccurredAt, activity.Latitude, activity.Longitude, activity.CreatedAt)
	ib.OnConflictDoNothing()

	query, args := ib.Build()
	if _, err := database.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": activity.ID, "client_id": activity.ClientID}).Error("Failed to insert activity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert activity")
	}

	return &activity, nil
}
