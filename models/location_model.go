package models

import "time"

const (
	MinCleanlinessScore = 1
	MaxCleanlinessScore = 10
)

type Location struct {
	ID                 string    `json:"id" bson:"_id,omitempty"`
	Key                string    `json:"key" bson:"key"`
	Name               string    `json:"name" bson:"name"`
	Latitude           float64   `json:"latitude" bson:"latitude"`
	Longitude          float64   `json:"longitude" bson:"longitude"`
	Located            bool      `json:"located" bson:"located"`
	AverageCleanliness float64   `json:"average_cleanliness" bson:"average_cleanliness"`
	ScoreSum           int       `json:"-" bson:"score_sum"`
	ScoredCount        int       `json:"scored_count" bson:"scored_count"`
	PostCount          int       `json:"post_count" bson:"post_count"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" bson:"updated_at"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// Valid reports whether the point lies on the globe.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// ScoreUpdate is one post's contribution to a location aggregate.
type ScoreUpdate struct {
	Key         string
	Name        string
	Coordinates *Coordinates
	Score       *int
	At          time.Time
}

// HasCoordinates is false while the location still carries the 0,0
// placeholder. A real position at 0,0 counts as located.
func (l Location) HasCoordinates() bool {
	return l.Located
}

// Apply folds u into the aggregate. A nil score counts toward PostCount only.
func (l *Location) Apply(u ScoreUpdate) {
	if l.Key == "" {
		l.Key = u.Key
		l.Name = u.Name
		l.CreatedAt = u.At
	}
	if u.Coordinates != nil && !l.HasCoordinates() {
		l.Latitude = u.Coordinates.Latitude
		l.Longitude = u.Coordinates.Longitude
		l.Located = true
	}
	l.PostCount++
	if u.Score != nil {
		l.ScoreSum += *u.Score
		l.ScoredCount++
	}
	l.AverageCleanliness = MeanScore(l.ScoreSum, l.ScoredCount)
	l.UpdatedAt = u.At
}

func MeanScore(sum, count int) float64 {
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}
