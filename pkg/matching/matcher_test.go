package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestDetect_ExactNameMatch(t *testing.T) {
	records := []models.Client{
		{ID: "a", FirstName: "John", LastName: "Smith", ContactCount: 2},
		{ID: "b", FirstName: "john", LastName: "smith", ContactCount: 5},
	}

	groups := NewMatcher().Detect(records)
	require.Len(t, groups, 1)

	assert.Equal(t, []string{"a", "b"}, groups[0].MemberIDs)
	assert.Equal(t, 97, groups[0].Score)
	assert.Equal(t, models.ReasonExactName, groups[0].Reason)
}

func TestDetect_NameTrimmingAndCaseFolding(t *testing.T) {
	records := []models.Client{
		{ID: "a", FirstName: "  John", LastName: "Smith  "},
		{ID: "b", FirstName: "JOHN", LastName: "SMITH"},
	}

	groups := NewMatcher().Detect(records)
	require.Len(t, groups, 1)
	assert.Equal(t, models.ReasonExactName, groups[0].Reason)
}

func TestDetect_SimilarNameNeedsSharedDemographic(t *testing.T) {
	t.Run("shared age matches", func(t *testing.T) {
		records := []models.Client{
			{ID: "a", FirstName: "Jon", LastName: "Smyth", Age: "30", ContactCount: 1},
			{ID: "b", FirstName: "John", LastName: "Smith", Age: "30", ContactCount: 1},
		}

		groups := NewMatcher().Detect(records)
		require.Len(t, groups, 1)
		assert.Equal(t, 20, groups[0].Score)
		assert.Equal(t, models.ReasonSimilarName, groups[0].Reason)
	})

	t.Run("no shared demographic does not match", func(t *testing.T) {
		records := []models.Client{
			{ID: "a", FirstName: "Jon", LastName: "Smyth", Age: "30"},
			{ID: "b", FirstName: "John", LastName: "Smith", Age: "31"},
		}

		groups := NewMatcher().Detect(records)
		assert.Empty(t, groups)
	})

	t.Run("blank demographics never count as shared", func(t *testing.T) {
		records := []models.Client{
			{ID: "a", FirstName: "Jon", LastName: "Smyth"},
			{ID: "b", FirstName: "John", LastName: "Smith"},
		}

		groups := NewMatcher().Detect(records)
		assert.Empty(t, groups)
	})

	t.Run("demographics compare case sensitively", func(t *testing.T) {
		records := []models.Client{
			{ID: "a", FirstName: "Jon", LastName: "Smyth", Gender: "Male"},
			{ID: "b", FirstName: "John", LastName: "Smith", Gender: "male"},
		}

		groups := NewMatcher().Detect(records)
		assert.Empty(t, groups)
	})

	t.Run("below the similarity threshold never matches", func(t *testing.T) {
		records := []models.Client{
			{ID: "a", FirstName: "Jonathan", LastName: "Smithers", Age: "30"},
			{ID: "b", FirstName: "Bill", LastName: "Bradley", Age: "30"},
		}

		groups := NewMatcher().Detect(records)
		assert.Empty(t, groups)
	})
}

func TestDetect_AliasRules(t *testing.T) {
	t.Run("matching street names", func(t *testing.T) {
		records := []models.Client{
			{ID: "a", FirstName: "Robert", LastName: "Jones", Alias: "Red"},
			{ID: "b", FirstName: "Bobby", LastName: "Johnson", Alias: "red"},
		}

		groups := NewMatcher().Detect(records)
		require.Len(t, groups, 1)
		assert.Equal(t, models.ReasonMatchingAKA, groups[0].Reason)
	})

	t.Run("name matching the other record's alias", func(t *testing.T) {
		records := []models.Client{
			{ID: "a", FirstName: "Big", LastName: "Mike"},
			{ID: "b", FirstName: "Michael", LastName: "Torres", Alias: "Big Mike"},
		}

		groups := NewMatcher().Detect(records)
		require.Len(t, groups, 1)
		assert.Equal(t, []string{"a", "b"}, groups[0].MemberIDs)
	})

	t.Run("blank name matches a blank alias", func(t *testing.T) {
		// A record with no name normalizes to "" and an absent alias is
		// also "", so a nameless record pairs with any alias-less one.
		// Intake review queues rely on these surfacing instead of being
		// skipped.
		records := []models.Client{
			{ID: "a", FirstName: "Sam", LastName: "Hill"},
			{ID: "b"},
		}

		groups := NewMatcher().Detect(records)
		require.Len(t, groups, 1)
		assert.Equal(t, []string{"a", "b"}, groups[0].MemberIDs)
	})

	t.Run("two nameless records collide on equal empty names", func(t *testing.T) {
		records := []models.Client{
			{ID: "a"},
			{ID: "b"},
		}

		groups := NewMatcher().Detect(records)
		require.Len(t, groups, 1)
	})
}

func TestDetect_GroupingIsGreedySingleLink(t *testing.T) {
	// b and c both match the seed a, but b and c do not match each other.
	// All three still land in one group because claiming goes through the
	// seed only.
	records := []models.Client{
		{ID: "a", FirstName: "John", LastName: "Smith", Alias: "Slim"},
		{ID: "b", FirstName: "john", LastName: "smith"},
		{ID: "c", FirstName: "Johnny", LastName: "Torres", Alias: "slim"},
	}

	groups := NewMatcher().Detect(records)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a", "b", "c"}, groups[0].MemberIDs)
}

func TestDetect_ClaimedRecordsAreNotReused(t *testing.T) {
	// c matches both a and b, but a claims it first; b is left ungrouped
	// rather than forming a second group around c.
	records := []models.Client{
		{ID: "a", FirstName: "John", LastName: "Smith"},
		{ID: "b", FirstName: "Jon", LastName: "Smith", Age: "40"},
		{ID: "c", FirstName: "john", LastName: "smith", Age: "40"},
	}

	groups := NewMatcher().Detect(records)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a", "c"}, groups[0].MemberIDs)
}

func TestDetect_ScoreUsesFirstTwoMembers(t *testing.T) {
	records := []models.Client{
		{ID: "a", FirstName: "John", LastName: "Smith", Age: "30", Gender: "M", Ethnicity: "W", Height: "6'1", ContactCount: 4},
		{ID: "b", FirstName: "john", LastName: "smith", Age: "30", Gender: "M", Ethnicity: "W", Height: "6'1", ContactCount: 4},
		{ID: "c", FirstName: "JOHN", LastName: "SMITH", ContactCount: 90},
	}

	groups := NewMatcher().Detect(records)
	require.Len(t, groups, 1)

	// 100 + 20 + 15 + 15 + 10 with no contact gap; the third member's
	// wildly different contact count has no effect on the score.
	assert.Equal(t, 160, groups[0].Score)
	assert.Equal(t, []string{"a", "b", "c"}, groups[0].MemberIDs)
}

func TestDetect_ScoreFloorsAtZero(t *testing.T) {
	records := []models.Client{
		{ID: "a", FirstName: "Jon", LastName: "Smyth", Age: "30", ContactCount: 0},
		{ID: "b", FirstName: "John", LastName: "Smith", Age: "30", ContactCount: 50},
	}

	groups := NewMatcher().Detect(records)
	require.Len(t, groups, 1)
	assert.Equal(t, 0, groups[0].Score)
}

func TestDetect_GroupsSortedByScoreDescending(t *testing.T) {
	records := []models.Client{
		{ID: "a", FirstName: "Jon", LastName: "Smyth", Age: "30", ContactCount: 1},
		{ID: "b", FirstName: "John", LastName: "Smith", Age: "30", ContactCount: 1},
		{ID: "c", FirstName: "Maria", LastName: "Lopez", ContactCount: 3},
		{ID: "d", FirstName: "maria", LastName: "lopez", ContactCount: 3},
	}

	groups := NewMatcher().Detect(records)
	require.Len(t, groups, 2)

	assert.Equal(t, []string{"c", "d"}, groups[0].MemberIDs)
	assert.Equal(t, 100, groups[0].Score)
	assert.Equal(t, []string{"a", "b"}, groups[1].MemberIDs)
	assert.Equal(t, 20, groups[1].Score)
}

func TestDetect_EqualScoresKeepDetectionOrder(t *testing.T) {
	records := []models.Client{
		{ID: "a", FirstName: "Maria", LastName: "Lopez"},
		{ID: "b", FirstName: "maria", LastName: "lopez"},
		{ID: "c", FirstName: "Dan", LastName: "Cole"},
		{ID: "d", FirstName: "dan", LastName: "cole"},
	}

	groups := NewMatcher().Detect(records)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"a", "b"}, groups[0].MemberIDs)
	assert.Equal(t, []string{"c", "d"}, groups[1].MemberIDs)
}

func TestDetect_EmptyInput(t *testing.T) {
	groups := NewMatcher().Detect(nil)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)

	groups = NewMatcher().Detect([]models.Client{})
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestDetect_IsDeterministic(t *testing.T) {
	records := []models.Client{
		{ID: "a", FirstName: "John", LastName: "Smith", ContactCount: 2},
		{ID: "b", FirstName: "john", LastName: "smith", ContactCount: 5},
		{ID: "c", FirstName: "Jon", LastName: "Smyth", Age: "30"},
		{ID: "d", FirstName: "Maria", LastName: "Lopez", Alias: "Mimi"},
		{ID: "e", FirstName: "Mari", LastName: "Lopes", Alias: "mimi"},
	}

	first := NewMatcher().Detect(records)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, NewMatcher().Detect(records))
	}
}

func TestSuggestSurvivor(t *testing.T) {
	t.Run("highest contact count wins", func(t *testing.T) {
		members := []models.Client{
			{ID: "a", ContactCount: 2},
			{ID: "b", ContactCount: 9},
			{ID: "c", ContactCount: 4},
		}
		assert.Equal(t, "b", SuggestSurvivor(members))
	})

	t.Run("ties keep the earliest member", func(t *testing.T) {
		members := []models.Client{
			{ID: "a", ContactCount: 4},
			{ID: "b", ContactCount: 4},
		}
		assert.Equal(t, "a", SuggestSurvivor(members))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, "", SuggestSurvivor(nil))
	})
}
