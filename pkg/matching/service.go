package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ClientSource supplies the record snapshot a detection pass runs over.
type ClientSource interface {
	FetchAll(ctx context.Context) ([]models.Client, error)
}

// Service runs detection passes over the live record set.
type Service struct {
	source  ClientSource
	matcher *Matcher
	logger  ectologger.Logger
}

// NewService creates a new detection service
func NewService(source ClientSource, logger ectologger.Logger) *Service {
	return &Service{
		source:  source,
		matcher: NewMatcher(),
		logger:  logger,
	}
}

// DetectDuplicates fetches a fresh snapshot, groups likely duplicates, and
// attaches a suggested survivor to every group. A snapshot read failure
// aborts the pass with no partial result.
func (s *Service) DetectDuplicates(ctx context.Context) ([]models.DuplicateGroup, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.DetectDuplicates")
	defer span.End()

	start := time.Now()

	records, err := s.source.FetchAll(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to fetch client snapshot")
		return nil, fmt.Errorf("failed to fetch client snapshot: %w", err)
	}

	groups := s.matcher.Detect(records)

	byID := make(map[string]models.Client, len(records))
	for i := range records {
		byID[records[i].ID] = records[i]
	}
	for i := range groups {
		members := make([]models.Client, 0, len(groups[i].MemberIDs))
		for _, id := range groups[i].MemberIDs {
			if record, ok := byID[id]; ok {
				members = append(members, record)
			}
		}
		groups[i].SuggestedSurvivorID = SuggestSurvivor(members)
	}

	metrics.DetectionRunsTotal.Inc()
	metrics.DetectionDuration.Observe(time.Since(start).Seconds())
	metrics.DetectionGroupsFound.Set(float64(len(groups)))

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"records": len(records),
		"groups":  len(groups),
	}).Info("Detection pass completed")

	return groups, nil
}
