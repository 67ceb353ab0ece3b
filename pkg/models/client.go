package models

import (
	"time"
)

// Client represents one client record as captured by outreach staff.
// Field order matches schema: id, first_name, middle_name, last_name, alias, ...
type Client struct {
	ID            string     `json:"id" db:"id"`
	FirstName     string     `json:"first_name" db:"first_name"`
	MiddleName    string     `json:"middle_name,omitempty" db:"middle_name"`
	LastName      string     `json:"last_name" db:"last_name"`
	Alias         string     `json:"alias,omitempty" db:"alias"` // "also known as" street name
	Age           string     `json:"age,omitempty" db:"age"`
	Gender        string     `json:"gender,omitempty" db:"gender"`
	Ethnicity     string     `json:"ethnicity,omitempty" db:"ethnicity"`
	Height        string     `json:"height,omitempty" db:"height"`
	Weight        string     `json:"weight,omitempty" db:"weight"`
	HairColor     string     `json:"hair_color,omitempty" db:"hair_color"`
	EyeColor      string     `json:"eye_color,omitempty" db:"eye_color"`
	Description   string     `json:"description,omitempty" db:"description"`
	ContactCount  int        `json:"contact_count" db:"contact_count"`
	LastContactAt *time.Time `json:"last_contact_at,omitempty" db:"last_contact_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// FullName returns the raw "first last" form. Matching applies its own
// normalization; this does no trimming or case folding.
func (c *Client) FullName() string {
	return c.FirstName + " " + c.LastName
}

// CreateClientRequest is the request for creating a client record.
// All attributes are optional: street outreach often starts a record from an
// alias or description alone.
type CreateClientRequest struct {
	FirstName   string `json:"first_name"`
	MiddleName  string `json:"middle_name,omitempty"`
	LastName    string `json:"last_name"`
	Alias       string `json:"alias,omitempty"`
	Age         string `json:"age,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Ethnicity   string `json:"ethnicity,omitempty"`
	Height      string `json:"height,omitempty"`
	Weight      string `json:"weight,omitempty"`
	HairColor   string `json:"hair_color,omitempty"`
	EyeColor    string `json:"eye_color,omitempty"`
	Description string `json:"description,omitempty"`
}

// UpdateClientRequest replaces the mutable attributes of a client record.
type UpdateClientRequest struct {
	FirstName     string     `json:"first_name"`
	MiddleName    string     `json:"middle_name,omitempty"`
	LastName      string     `json:"last_name"`
	Alias         string     `json:"alias,omitempty"`
	Age           string     `json:"age,omitempty"`
	Gender        string     `json:"gender,omitempty"`
	Ethnicity     string     `json:"ethnicity,omitempty"`
	Height        string     `json:"height,omitempty"`
	Weight        string     `json:"weight,omitempty"`
	HairColor     string     `json:"hair_color,omitempty"`
	EyeColor      string     `json:"eye_color,omitempty"`
	Description   string     `json:"description,omitempty"`
	ContactCount  *int       `json:"contact_count,omitempty" validate:"omitempty,min=0"`
	LastContactAt *time.Time `json:"last_contact_at,omitempty"`
}

// ClientListResponse is the response for listing client records.
type ClientListResponse struct {
	Items      []Client `json:"items"`
	TotalCount int      `json:"total_count"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
}
