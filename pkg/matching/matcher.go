package matching

import (
	"sort"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Minimum normalized name similarity for the demographic rule. The boundary
// is inclusive: a pair one letter apart in each word of a ten-letter name
// ("jon smyth" / "john smith") sits at exactly 0.8 and must match.
const similarityThreshold = 0.8

// Score weights applied between a group's first two members.
const (
	scoreExactName = 100
	scoreAge       = 20
	scoreGender    = 15
	scoreEthnicity = 15
	scoreHeight    = 10
)

// Matcher groups client records that likely denote the same person.
// Detection is deterministic and side-effect free: the same input always
// yields the same groups in the same order.
type Matcher struct {
	scorer *Scorer
}

// NewMatcher creates a new Matcher
func NewMatcher() *Matcher {
	return &Matcher{scorer: NewScorer()}
}

// nameKey returns the normalized "first last" form used by every name rule.
// Only the ends are trimmed; interior whitespace is preserved.
func nameKey(c *models.Client) string {
	return strings.ToLower(strings.TrimSpace(c.FirstName + " " + c.LastName))
}

// aliasKey returns the normalized alias.
func aliasKey(c *models.Client) string {
	return strings.ToLower(strings.TrimSpace(c.Alias))
}

// Detect scans records in input order and returns duplicate groups ranked by
// score, highest first. Ties keep detection order.
//
// Grouping is greedy single-link: each unclaimed record seeds a group and
// claims every later unclaimed record it matches, so two members of one
// group need not match each other, only the seed. Records claimed by an
// earlier group are never reconsidered.
func (m *Matcher) Detect(records []models.Client) []models.DuplicateGroup {
	groups := make([]models.DuplicateGroup, 0)
	claimed := make([]bool, len(records))

	for i := range records {
		if claimed[i] {
			continue
		}
		seed := &records[i]

		var matched []int
		for j := i + 1; j < len(records); j++ {
			if claimed[j] {
				continue
			}
			if m.isDuplicate(seed, &records[j]) {
				matched = append(matched, j)
			}
		}
		if len(matched) == 0 {
			continue
		}

		claimed[i] = true
		memberIDs := make([]string, 0, len(matched)+1)
		memberIDs = append(memberIDs, seed.ID)
		for _, j := range matched {
			claimed[j] = true
			memberIDs = append(memberIDs, records[j].ID)
		}

		first := &records[matched[0]]
		groups = append(groups, models.DuplicateGroup{
			MemberIDs: memberIDs,
			Score:     m.scorePair(seed, first),
			Reason:    m.reason(seed, first),
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Score > groups[j].Score
	})
	return groups
}

// isDuplicate reports whether two records likely denote the same person.
// Rules are checked in precedence order; any hit is enough.
func (m *Matcher) isDuplicate(a, b *models.Client) bool {
	aName, bName := nameKey(a), nameKey(b)
	if aName == bName {
		return true
	}

	aAlias, bAlias := aliasKey(a), aliasKey(b)
	if aAlias != "" && bAlias != "" && aAlias == bAlias {
		return true
	}

	// A record's name matching the other's street name counts in both
	// directions. No emptiness guard: a blank name matches a blank alias.
	if aName == bAlias || bName == aAlias {
		return true
	}

	if m.scorer.Levenshtein(aName, bName) >= similarityThreshold && m.sharesDemographic(a, b) {
		return true
	}
	return false
}

// sharesDemographic reports whether at least one demographic field is
// populated on both records and identical. Demographics compare
// case-sensitively; only names are case folded.
func (m *Matcher) sharesDemographic(a, b *models.Client) bool {
	if a.Age != "" && b.Age != "" && a.Age == b.Age {
		return true
	}
	if a.Gender != "" && b.Gender != "" && a.Gender == b.Gender {
		return true
	}
	if a.Ethnicity != "" && b.Ethnicity != "" && a.Ethnicity == b.Ethnicity {
		return true
	}
	return false
}

// scorePair computes a group's confidence from its first two members.
func (m *Matcher) scorePair(a, b *models.Client) int {
	score := 0
	if nameKey(a) == nameKey(b) {
		score += scoreExactName
	}
	if a.Age != "" && a.Age == b.Age {
		score += scoreAge
	}
	if a.Gender != "" && a.Gender == b.Gender {
		score += scoreGender
	}
	if a.Ethnicity != "" && a.Ethnicity == b.Ethnicity {
		score += scoreEthnicity
	}
	if a.Height != "" && a.Height == b.Height {
		score += scoreHeight
	}
	score -= abs(a.ContactCount - b.ContactCount)
	if score < 0 {
		score = 0
	}
	return score
}

// reason classifies a group by the strongest rule its first two members hit.
func (m *Matcher) reason(a, b *models.Client) string {
	if nameKey(a) == nameKey(b) {
		return models.ReasonExactName
	}
	if ak, bk := aliasKey(a), aliasKey(b); ak != "" && ak == bk {
		return models.ReasonMatchingAKA
	}
	return models.ReasonSimilarName
}

// SuggestSurvivor returns the member with the highest contact count, keeping
// the earliest member on ties. Empty input returns "".
func SuggestSurvivor(members []models.Client) string {
	if len(members) == 0 {
		return ""
	}
	best := 0
	for i := 1; i < len(members); i++ {
		if members[i].ContactCount > members[best].ContactCount {
			best = i
		}
	}
	return members[best].ID
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
