package models

import "time"

type Post struct {
	ID               string       `json:"id" bson:"_id,omitempty"`
	UserID           string       `json:"user_id" bson:"user_id"`
	ImageID          string       `json:"-" bson:"image_id"`
	ImageURL         string       `json:"image" bson:"-"`
	ImageContentType string       `json:"image_content_type" bson:"image_content_type"`
	Location         string       `json:"location" bson:"location"`
	LocationKey      string       `json:"location_key" bson:"location_key"`
	Coordinates      *Coordinates `json:"coordinates,omitempty" bson:"coordinates,omitempty"`
	CleanlinessScore *int         `json:"cleanliness_score" bson:"cleanliness_score"`
	TrashPresent     *bool        `json:"trash_present,omitempty" bson:"trash_present,omitempty"`
	Details          string       `json:"details,omitempty" bson:"details,omitempty"`
	CreatedAt        time.Time    `json:"created_at" bson:"created_at"`
}

// CleanlinessReport is what the vision model says about one image.
type CleanlinessReport struct {
	Score        int    `json:"cleanliness_score"`
	TrashPresent bool   `json:"trash_present"`
	Details      string `json:"details"`
}
