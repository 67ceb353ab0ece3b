package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles client record persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new client repository
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

// Create creates a new client record
func (r *Repository) Create(ctx context.Context, req models.CreateClientRequest) (*models.Client, error) {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	client := models.Client{
		ID:           uuid.New().String(),
		FirstName:    req.FirstName,
		MiddleName:   req.MiddleName,
		LastName:     req.LastName,
		Alias:        req.Alias,
		Age:          req.Age,
		Gender:       req.Gender,
		Ethnicity:    req.Ethnicity,
		Height:       req.Height,
		Weight:       req.Weight,
		HairColor:    req.HairColor,
		EyeColor:     req.EyeColor,
		Description:  req.Description,
		ContactCount: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("clients")
	sb.Cols("id", "first_name", "middle_name", "last_name", "alias", "age", "gender", "ethnicity", "height", "weight", "hair_color", "eye_color", "description", "contact_count", "last_contact_at", "created_at", "updated_at")
	sb.Values(client.ID, client.FirstName, client.MiddleName, client.LastName, client.Alias, client.Age, client.Gender, client.Ethnicity, client.Height, client.Weight, client.HairColor, client.EyeColor, client.Description, client.ContactCount, client.LastContactAt, client.CreatedAt, client.UpdatedAt)

	query, args := sb.Build()
	if _, err := database.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create client")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create client")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": client.ID}).Info("Created client")
	return &client, nil
}

// Get retrieves a client record by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Client, error) {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "first_name", "middle_name", "last_name", "alias", "age", "gender", "ethnicity", "height", "weight", "hair_color", "eye_color", "description", "contact_count", "last_contact_at", "created_at", "updated_at")
	sb.From("clients")
	sb.Where(
		sb.Equal("id", id),
	)

	query, args := sb.Build()
	var client models.Client
	if err := database.QuerierFromContext(ctx, r.db).GetContext(ctx, &client, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("client %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get client")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get client")
	}

	return &client, nil
}

// GetByIDs retrieves client records by their IDs. Missing IDs are simply
// absent from the result; callers decide whether that is an error.
func (r *Repository) GetByIDs(ctx context.Context, ids []string) ([]models.Client, error) {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return []models.Client{}, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "first_name", "middle_name", "last_name", "alias", "age", "gender", "ethnicity", "height", "weight", "hair_color", "eye_color", "description", "contact_count", "last_contact_at", "created_at", "updated_at")
	sb.From("clients")
	sb.Where(
		sb.In("id", sqlbuilder.Flatten(ids)...),
	)

	query, args := sb.Build()
	var clients []models.Client
	if err := database.QuerierFromContext(ctx, r.db).SelectContext(ctx, &clients, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"ids": ids}).Error("Failed to get clients by IDs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get clients")
	}
	return clients, nil
}

// FetchAll returns every client record ordered by creation time. Duplicate
// detection scans the full roster, so there is no pagination here; rosters
// are bounded by how many people a street outreach team can meet.
func (r *Repository) FetchAll(ctx context.Context) ([]models.Client, error) {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.FetchAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "first_name", "middle_name", "last_name", "alias", "age", "gender", "ethnicity", "height", "weight", "hair_color", "eye_color", "description", "contact_count", "last_contact_at", "created_at", "updated_at")
	sb.From("clients")
	sb.OrderBy("created_at", "id")

	query, args := sb.Build()
	var clients []models.Client
	if err := database.QuerierFromContext(ctx, r.db).SelectContext(ctx, &clients, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to fetch all clients")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to fetch clients")
	}
	return clients, nil
}

// List returns a page of client records
func (r *Repository) List(ctx context.Context, page, pageSize int) (*models.ClientListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.List")
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
	countSb.From("clients")

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := database.QuerierFromContext(ctx, r.db).GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"page": page, "page_size": pageSize}).Error("Failed to count clients")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count clients")
	}

	// Fetch page
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "first_name", "middle_name", "last_name", "alias", "age", "gender", "ethnicity", "height", "weight", "hair_color", "eye_color", "description", "contact_count", "last_contact_at", "created_at", "updated_at")
	sb.From("clients")
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var clients []models.Client
	if err := database.QuerierFromContext(ctx, r.db).SelectContext(ctx, &clients, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"page": page, "page_size": pageSize}).Error("Failed to list clients")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list clients")
	}

	return &models.ClientListResponse{
		Items:      clients,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// Update replaces a client record's mutable attributes
func (r *Repository) Update(ctx context.Context, id string, req models.UpdateClientRequest) (*models.Client, error) {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.Update")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("clients")
	assigns := []string{
		sb.Assign("first_name", req.FirstName),
		sb.Assign("middle_name", req.MiddleName),
		sb.Assign("last_name", req.LastName),
		sb.Assign("alias", req.Alias),
		sb.Assign("age", req.Age),
		sb.Assign("gender", req.Gender),
		sb.Assign("ethnicity", req.Ethnicity),
		sb.Assign("height", req.Height),
		sb.Assign("weight", req.Weight),
		sb.Assign("hair_color", req.HairColor),
		sb.Assign("eye_color", req.EyeColor),
		sb.Assign("description", req.Description),
		sb.Assign("updated_at", now),
	}
	if req.ContactCount != nil {
		assigns = append(assigns, sb.Assign("contact_count", *req.ContactCount))
	}
	if req.LastContactAt != nil {
		assigns = append(assigns, sb.Assign("last_contact_at", *req.LastContactAt))
	}
	sb.Set(assigns...)
	sb.Where(
		sb.Equal("id", id),
	)

	query, args := sb.Build()
	result, err := database.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update client")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update client")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("client %s not found", id))
	}

	// Fetch and return updated client
	return r.Get(ctx, id)
}

// UpdateContactCount sets a client's absorbed contact total after a merge.
func (r *Repository) UpdateContactCount(ctx context.Context, id string, contactCount int) error {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.UpdateContactCount")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("clients")
	sb.Set(
		sb.Assign("contact_count", contactCount),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("id", id),
	)

	query, args := sb.Build()
	result, err := database.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update contact count")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update contact count")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("client %s not found", id))
	}
	return nil
}

// Upsert creates or updates a client record keyed by ID. Used by the ingest
// path, where the same event can be redelivered; replaying an event must not
// produce a second row.
func (r *Repository) Upsert(ctx context.Context, client models.Client) (*repositories.UpsertResult, error) {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.Upsert")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method": "Upsert",
		"id":     client.ID,
	})

	now := time.Now().UTC()
	if client.ID == "" {
		client.ID = uuid.New().String()
	}

	// Single atomic upsert; contact_count and created_at are owned by the
	// existing row on conflict, everything else follows the event.
	query := `
		WITH upsert AS (
			INSERT INTO clients (
				id, first_name, middle_name, last_name, alias, age, gender,
				ethnicity, height, weight, hair_color, eye_color, description,
				contact_count, last_contact_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			ON CONFLICT (id)
			DO UPDATE SET
				first_name = EXCLUDED.first_name,
				middle_name = EXCLUDED.middle_name,
				last_name = EXCLUDED.last_name,
				alias = EXCLUDED.alias,
				age = EXCLUDED.age,
				gender = EXCLUDED.gender,
				ethnicity = EXCLUDED.ethnicity,
				height = EXCLUDED.height,
				weight = EXCLUDED.weight,
				hair_color = EXCLUDED.hair_color,
				eye_color = EXCLUDED.eye_color,
				description = EXCLUDED.description,
				last_contact_at = EXCLUDED.last_contact_at,
				updated_at = EXCLUDED.updated_at
			RETURNING
				id, first_name, middle_name, last_name, alias, age, gender,
				ethnicity, height, weight, hair_color, eye_color, description,
				contact_count, last_contact_at, created_at, updated_at,
				(xmax = 0) AS inserted
		)
		SELECT * FROM upsert
	`

	var result struct {
		models.Client
		Inserted bool `db:"inserted"`
	}

	err := database.QuerierFromContext(ctx, r.db).GetContext(ctx, &result, query,
		client.ID, client.FirstName, client.MiddleName, client.LastName, client.Alias,
		client.Age, client.Gender, client.Ethnicity, client.Height, client.Weight,
		client.HairColor, client.EyeColor, client.Description,
		client.ContactCount, client.LastContactAt, now, now,
	)
	if err != nil {
		log.WithError(err).Error("Failed to upsert client")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert client")
	}

	if result.Inserted {
		log.Info("Created client from event")
	} else {
		log.Debug("Updated client from event")
	}
	return &repositories.UpsertResult{Client: &result.Client, IsNew: result.Inserted}, nil
}

// Delete removes a client record permanently. Merges absorb records instead
// of archiving them, so there is no soft-delete column to fall back on.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.Delete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("clients")
	sb.Where(
		sb.Equal("id", id),
	)

	query, args := sb.Build()
	result, err := database.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete client")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete client")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("client %s not found", id))
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": id}).Info("Deleted client")
	return nil
}
