package models

import (
	"time"
)

// Activity represents one logged encounter with a client. Every activity
// belongs to exactly one client; the schema enforces the reference.
type Activity struct {
	ID         string    `json:"id" db:"id"`
	ClientID   string    `json:"client_id" db:"client_id"`
	Author     string    `json:"author" db:"author"`
	Category   string    `json:"category,omitempty" db:"category"`
	Notes      string    `json:"notes,omitempty" db:"notes"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
	Latitude   *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude  *float64  `json:"longitude,omitempty" db:"longitude"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// CreateActivityRequest is the request for logging an activity against a client.
type CreateActivityRequest struct {
	ClientID   string     `json:"client_id" validate:"required"`
	Author     string     `json:"author" validate:"required"`
	Category   string     `json:"category,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"` // defaults to now
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
}

// ActivityListResponse is the response for listing activities.
type ActivityListResponse struct {
	Items      []Activity `json:"items"`
	TotalCount int        `json:"total_count"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
}
