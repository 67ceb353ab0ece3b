package duplicate

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// CacheKey holds the rendered response of the latest detection pass.
const CacheKey = "duplicates:latest"

// cacheTTL bounds how stale a served detection pass can be.
const cacheTTL = 30 * time.Second

// Detector runs a detection pass over the live roster.
type Detector interface {
	DetectDuplicates(ctx context.Context) ([]models.DuplicateGroup, error)
}

// Cache holds a rendered detection response for a short window. A detection
// pass reads every client record, so bursts of review traffic share one pass.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Handler serves the duplicate review endpoint.
type Handler struct {
	detector Detector
	cache    Cache
	logger   ectologger.Logger
}

// NewHandler creates a new duplicate handler
func NewHandler(detector Detector, cache Cache, logger ectologger.Logger) *Handler {
	return &Handler{
		detector: detector,
		cache:    cache,
		logger:   logger,
	}
}

// Register registers duplicate routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
}

// List runs a detection pass and returns the candidate groups, served from
// cache when a pass finished within the last cacheTTL.
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "duplicate_handler.List")
	defer span.End()

	if h.cache != nil {
		// Any cache error, including a plain miss, falls through to a
		// fresh pass.
		if cached, err := h.cache.Get(ctx, CacheKey); err == nil && cached != "" {
			metrics.DetectionCacheHits.Inc()
			return c.JSONBlob(http.StatusOK, []byte(cached))
		}
		metrics.DetectionCacheMisses.Inc()
	}

	groups, err := h.detector.DetectDuplicates(ctx)
	if err != nil {
		return err
	}

	resp := models.DuplicateListResponse{
		Groups:     groups,
		TotalCount: len(groups),
		DetectedAt: time.Now().UTC(),
	}

	if h.cache != nil {
		body, err := json.Marshal(resp)
		if err == nil {
			if err := h.cache.Set(ctx, CacheKey, string(body), cacheTTL); err != nil {
				h.logger.WithContext(ctx).WithError(err).Warn("Failed to cache detection pass")
			}
		}
	}

	return c.JSON(http.StatusOK, resp)
}
