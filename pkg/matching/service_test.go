package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeSource struct {
	records []models.Client
	err     error
	calls   int
}

func (f *fakeSource) FetchAll(ctx context.Context) ([]models.Client, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestDetectDuplicates_AttachesSuggestedSurvivor(t *testing.T) {
	source := &fakeSource{records: []models.Client{
		{ID: "a", FirstName: "John", LastName: "Smith", ContactCount: 2},
		{ID: "b", FirstName: "john", LastName: "smith", ContactCount: 5},
	}}
	svc := NewService(source, noopLogger())

	groups, err := svc.DetectDuplicates(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)

	assert.Equal(t, "b", groups[0].SuggestedSurvivorID)
	assert.Equal(t, 1, source.calls)
}

func TestDetectDuplicates_EmptyRoster(t *testing.T) {
	svc := NewService(&fakeSource{}, noopLogger())

	groups, err := svc.DetectDuplicates(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestDetectDuplicates_FetchFailureAbortsPass(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	svc := NewService(source, noopLogger())

	groups, err := svc.DetectDuplicates(context.Background())
	require.Error(t, err)
	assert.Nil(t, groups)
	assert.Contains(t, err.Error(), "failed to fetch client snapshot")
}

func TestDetectDuplicates_FreshSnapshotEachPass(t *testing.T) {
	source := &fakeSource{records: []models.Client{
		{ID: "a", FirstName: "Maria", LastName: "Lopez", ContactCount: 1},
		{ID: "b", FirstName: "maria", LastName: "lopez", ContactCount: 1},
	}}
	svc := NewService(source, noopLogger())

	_, err := svc.DetectDuplicates(context.Background())
	require.NoError(t, err)

	// The pair merged between passes; the next pass reads the new roster
	// instead of reusing the old snapshot.
	source.records = []models.Client{
		{ID: "a", FirstName: "Maria", LastName: "Lopez", ContactCount: 2},
	}

	groups, err := svc.DetectDuplicates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, groups)
	assert.Equal(t, 2, source.calls)
}
