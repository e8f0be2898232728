// Package models defines the records persisted by the repositories.
package models

import "time"

// Image is a post: a picture reference with its description and counters.
type Image struct {
	// ID is the internal storage key assigned by the engine on insert.
	ID string `json:"id"`
	// PublicID is the encoded form of ID exposed to clients.
	PublicID string `json:"publicId"`

	Description string `json:"description"`
	// Tags are derived from Description once, at creation.
	Tags []string `json:"tags"`
	// URL points at the stored picture.
	URL string `json:"url"`

	UserID string `json:"userId"`

	Likes int  `json:"likes"`
	Liked bool `json:"liked"`

	CreatedAt time.Time `json:"createdAt"`
}
