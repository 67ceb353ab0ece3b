package client

import (
	"context"
	"database/sql"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories"
	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/routes"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var validate = validator.New()

// Emitter publishes roster change events.
type Emitter interface {
	EmitClientDeleted(ctx context.Context, clientID string) error
}

// Handler serves the client record endpoints.
type Handler struct {
	clients    repositories.ClientRepo
	activities repositories.ActivityRepo
	emitter    Emitter
	logger     ectologger.Logger
}

// NewHandler creates a new client handler
func NewHandler(clients repositories.ClientRepo, activities repositories.ActivityRepo, emitter Emitter, logger ectologger.Logger) *Handler {
	return &Handler{
		clients:    clients,
		activities: activities,
		emitter:    emitter,
		logger:     logger,
	}
}

// Register registers client routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/activities", h.ListActivities)
}

// Create creates a new client record
func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "client_handler.Create")
	defer span.End()

	var req models.CreateClientRequest
	if err := c.Bind(&req); err != nil {
		return routes.BadRequest("invalid request body")
	}

	record, err := h.clients.Create(ctx, req)
	if err != nil {
		return err
	}

	return routes.CreatedResponse(c, record)
}

// List returns a page of client records
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "client_handler.List")
	defer span.End()

	page, pageSize := routes.ParsePagination(c)

	resp, err := h.clients.List(ctx, page, pageSize)
	if err != nil {
		return err
	}

	return routes.SuccessResponse(c, resp)
}

// Get returns a single client record by ID
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "client_handler.Get")
	defer span.End()

	id, err := routes.ParseID(c, "id")
	if err != nil {
		return err
	}

	record, err := h.clients.Get(ctx, id)
	if err != nil {
		return err
	}

	return routes.SuccessResponse(c, record)
}

// Update replaces the mutable attributes of a client record
func (h *Handler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "client_handler.Update")
	defer span.End()

	id, err := routes.ParseID(c, "id")
	if err != nil {
		return err
	}

	var req models.UpdateClientRequest
	if err := c.Bind(&req); err != nil {
		return routes.BadRequest("invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return routes.BadRequest(err.Error())
	}

	record, err := h.clients.Update(ctx, id, req)
	if err != nil {
		return err
	}

	return routes.SuccessResponse(c, record)
}

// Delete removes a client record and every activity logged against it.
// Activities cannot outlive their client, so both go in one transaction.
func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "client_handler.Delete")
	defer span.End()

	id, err := routes.ParseID(c, "id")
	if err != nil {
		return err
	}

	// 404 before opening a transaction
	if _, err := h.clients.Get(ctx, id); err != nil {
		return err
	}

	ctxTx, tx, err := h.clients.DB().GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctxTx)
	}()

	removed, err := h.activities.DeleteByClient(ctxTx, id)
	if err != nil {
		return err
	}

	if err := h.clients.Delete(ctxTx, id); err != nil {
		return err
	}

	if err := tx.Commit(ctxTx); err != nil {
		return err
	}

	// The delete is committed; a lost event must not undo it.
	if h.emitter != nil {
		if err := h.emitter.EmitClientDeleted(ctx, id); err != nil {
			h.logger.WithContext(ctx).WithError(err).Warn("Failed to emit client deleted event")
		}
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"client_id":          id,
		"activities_removed": removed,
		"actor":              appctx.GetActor(ctx),
	}).Info("Deleted client")

	return routes.NoContentResponse(c)
}

// ListActivities returns a page of activities logged against a client
func (h *Handler) ListActivities(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "client_handler.ListActivities")
	defer span.End()

	id, err := routes.ParseID(c, "id")
	if err != nil {
		return err
	}

	if _, err := h.clients.Get(ctx, id); err != nil {
		return err
	}

	page, pageSize := routes.ParsePagination(c)

	resp, err := h.activities.ListByClient(ctx, id, page, pageSize)
	if err != nil {
		return err
	}

	return routes.SuccessResponse(c, resp)
}
