package merge

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/routes"
	"github.com/Ramsey-B/fern/pkg/routes/duplicate"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var validate = validator.New()

// Merger consolidates duplicate records into a survivor.
type Merger interface {
	Merge(ctx context.Context, req models.MergeRequest) (*models.MergeOutcome, error)
}

// Cache drops the cached detection pass once a merge commits, so the next
// review reflects the new roster.
type Cache interface {
	Del(ctx context.Context, keys ...string) error
}

// Handler serves the merge endpoint.
type Handler struct {
	merger Merger
	cache  Cache
	logger ectologger.Logger
}

// NewHandler creates a new merge handler
func NewHandler(merger Merger, cache Cache, logger ectologger.Logger) *Handler {
	return &Handler{
		merger: merger,
		cache:  cache,
		logger: logger,
	}
}

// Register registers merge routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Create)
}

// Create merges the requested client records into the survivor
func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "merge_handler.Create")
	defer span.End()

	var req models.MergeRequest
	if err := c.Bind(&req); err != nil {
		return routes.BadRequest("invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return routes.BadRequest(err.Error())
	}

	outcome, err := h.merger.Merge(ctx, req)
	if err != nil {
		var mergeErr *merging.MergeError
		if errors.As(err, &mergeErr) {
			return mergeErr.ToHTTPError()
		}
		return err
	}

	if h.cache != nil {
		if err := h.cache.Del(ctx, duplicate.CacheKey); err != nil {
			h.logger.WithContext(ctx).WithError(err).Warn("Failed to invalidate detection cache")
		}
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"survivor_id": outcome.SurvivorID,
		"absorbed":    len(outcome.AbsorbedIDs),
		"actor":       appctx.GetActor(ctx),
	}).Info("Merge committed")

	return routes.SuccessResponse(c, outcome)
}
