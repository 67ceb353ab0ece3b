package activity

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/routes"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var validate = validator.New()

// Handler serves the activity endpoints.
type Handler struct {
	activities repositories.ActivityRepo
	clients    repositories.ClientRepo
}

// NewHandler creates a new activity handler
func NewHandler(activities repositories.ActivityRepo, clients repositories.ClientRepo) *Handler {
	return &Handler{
		activities: activities,
		clients:    clients,
	}
}

// Register registers activity routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
}

// Create logs an activity against a client
func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "activity_handler.Create")
	defer span.End()

	var req models.CreateActivityRequest
	if err := c.Bind(&req); err != nil {
		return routes.BadRequest("invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return routes.BadRequest(err.Error())
	}

	// 404s before the insert rather than surfacing a constraint violation
	if _, err := h.clients.Get(ctx, req.ClientID); err != nil {
		return err
	}

	activity, err := h.activities.Create(ctx, req)
	if err != nil {
		return err
	}

	return routes.CreatedResponse(c, activity)
}

// Get returns a single activity by ID
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "activity_handler.Get")
	defer span.End()

	id, err := routes.ParseID(c, "id")
	if err != nil {
		return err
	}

	activity, err := h.activities.Get(ctx, id)
	if err != nil {
		return err
	}

	return routes.SuccessResponse(c, activity)
}
