package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	scorer := NewScorer()

	cases := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{"identical", "john smith", "john smith", 0},
		{"empty against empty", "", "", 0},
		{"empty against word", "", "smith", 5},
		{"word against empty", "smith", "", 5},
		{"single substitution", "smith", "smyth", 1},
		{"single insertion", "jon", "john", 1},
		{"insertion and substitution", "jon smyth", "john smith", 2},
		{"unrelated", "abc", "xyz", 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, scorer.LevenshteinDistance(tc.a, tc.b))
		})
	}
}

func TestLevenshteinDistance_Symmetric(t *testing.T) {
	scorer := NewScorer()

	pairs := [][2]string{
		{"jon smyth", "john smith"},
		{"maria", "marie"},
		{"", "anything"},
	}

	for _, p := range pairs {
		assert.Equal(t, scorer.LevenshteinDistance(p[0], p[1]), scorer.LevenshteinDistance(p[1], p[0]))
	}
}

func TestLevenshtein_Similarity(t *testing.T) {
	scorer := NewScorer()

	t.Run("identical strings score 1", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.Levenshtein("john smith", "john smith"))
	})

	t.Run("both empty score 1", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.Levenshtein("", ""))
	})

	t.Run("nothing in common scores 0", func(t *testing.T) {
		assert.Equal(t, 0.0, scorer.Levenshtein("abc", "xyz"))
	})

	t.Run("two edits across ten characters score exactly 0.8", func(t *testing.T) {
		// Longest string has 10 bytes and the distance is 2, so the
		// similarity lands exactly on the threshold.
		assert.Equal(t, 0.8, scorer.Levenshtein("jon smyth", "john smith"))
	})

	t.Run("ratio uses the longer string", func(t *testing.T) {
		// distance 2, max length 5
		assert.InDelta(t, 0.6, scorer.Levenshtein("abc", "abcde"), 1e-9)
	})
}
