package models

import "time"

// Class represents a scheduled session students can enroll in. The image
// is stored inline and serialized as base64 in JSON responses.
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
	Image     []byte    `db:"image" json:"image,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassFilter defines criteria for listing classes.
type ClassFilter struct {
	// Upcoming restricts results to [From, Until). Zero values disable it.
	From  time.Time
	Until time.Time
}
