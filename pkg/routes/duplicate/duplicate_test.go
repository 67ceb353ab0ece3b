package duplicate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeDetector struct {
	groups []models.DuplicateGroup
	err    error
	calls  int
}

func (f *fakeDetector) DetectDuplicates(_ context.Context) ([]models.DuplicateGroup, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.groups, nil
}

type fakeCache struct {
	value  string
	getErr error
	setKey string
	setVal string
	setTTL time.Duration
	setErr error
}

func (f *fakeCache) Get(_ context.Context, _ string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.value, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	f.setKey = key
	f.setVal, _ = value.(string)
	f.setTTL = expiration
	return f.setErr
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func getDuplicates(t *testing.T, h *Handler) (*httptest.ResponseRecorder, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return rec, h.List(e.NewContext(req, rec))
}

func TestList_RunsFreshPassAndCachesIt(t *testing.T) {
	detector := &fakeDetector{groups: []models.DuplicateGroup{
		{MemberIDs: []string{"a", "b"}, Score: 97, Reason: models.ReasonExactName, SuggestedSurvivorID: "a"},
	}}
	cache := &fakeCache{getErr: errors.New("redis: nil")}
	h := NewHandler(detector, cache, noopLogger())

	rec, err := getDuplicates(t, h)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, detector.calls)

	var resp models.DuplicateListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, []string{"a", "b"}, resp.Groups[0].MemberIDs)
	assert.Equal(t, 97, resp.Groups[0].Score)
	assert.Equal(t, 1, resp.TotalCount)
	assert.False(t, resp.DetectedAt.IsZero())

	assert.Equal(t, CacheKey, cache.setKey)
	assert.Equal(t, 30*time.Second, cache.setTTL)
	assert.JSONEq(t, rec.Body.String(), cache.setVal)
}

func TestList_ServesCachedPass(t *testing.T) {
	cached := `{"groups":[{"member_ids":["a","b"],"score":97,"reason":"exact name match"}],"total_count":1,"detected_at":"2026-08-25T00:00:00Z"}`
	detector := &fakeDetector{}
	cache := &fakeCache{value: cached}
	h := NewHandler(detector, cache, noopLogger())

	rec, err := getDuplicates(t, h)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, cached, rec.Body.String())
	assert.Equal(t, 0, detector.calls, "a cached pass must not trigger a fresh one")
}

func TestList_DetectorFailurePropagates(t *testing.T) {
	detector := &fakeDetector{err: errors.New("snapshot read failed")}
	h := NewHandler(detector, &fakeCache{getErr: errors.New("redis: nil")}, noopLogger())

	_, err := getDuplicates(t, h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot read failed")
}

func TestList_WorksWithoutCache(t *testing.T) {
	detector := &fakeDetector{groups: []models.DuplicateGroup{}}
	h := NewHandler(detector, nil, noopLogger())

	rec, err := getDuplicates(t, h)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, detector.calls)
}

func TestList_CacheSetFailureStillReturnsGroups(t *testing.T) {
	detector := &fakeDetector{groups: []models.DuplicateGroup{
		{MemberIDs: []string{"a", "b"}, Score: 20, Reason: models.ReasonSimilarName},
	}}
	cache := &fakeCache{getErr: errors.New("redis: nil"), setErr: errors.New("write refused")}
	h := NewHandler(detector, cache, noopLogger())

	rec, err := getDuplicates(t, h)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}
