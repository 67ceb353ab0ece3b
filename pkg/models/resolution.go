package models

import (
	"time"
)

// Match reasons, in precedence order. A group's reason reflects the rule that
// joined its first two members.
const (
	ReasonExactName   = "exact name match"
	ReasonMatchingAKA = "matching AKA"
	ReasonSimilarName = "similar name + demographics"
)

// DuplicateGroup is one candidate set of client records believed to denote
// the same person. Groups are derived per detection pass and never persisted.
type DuplicateGroup struct {
	MemberIDs           []string `json:"member_ids"`
	Score               int      `json:"score"`
	Reason              string   `json:"reason"`
	SuggestedSurvivorID string   `json:"suggested_survivor_id,omitempty"`
}

// DuplicateListResponse is the response for a detection pass.
type DuplicateListResponse struct {
	Groups     []DuplicateGroup `json:"groups"`
	TotalCount int              `json:"total_count"`
	DetectedAt time.Time        `json:"detected_at"`
}

// MergeRequest asks the coordinator to consolidate member_ids into survivor_id.
type MergeRequest struct {
	MemberIDs  []string `json:"member_ids" validate:"required,min=2,dive,required"`
	SurvivorID string   `json:"survivor_id" validate:"required"`
}

// MergeOutcome summarizes one committed merge.
type MergeOutcome struct {
	SurvivorID           string    `json:"survivor_id"`
	AbsorbedIDs          []string  `json:"absorbed_ids"`
	ActivitiesReassigned int64     `json:"activities_reassigned"`
	ContactCount         int       `json:"contact_count"`
	MergedAt             time.Time `json:"merged_at"`
}
