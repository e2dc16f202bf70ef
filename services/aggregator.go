package services

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"cleanscore-server/models"
	"cleanscore-server/utils/errors"
	"cleanscore-server/utils/slug"
)

// Aggregator maintains the per-location running average of post scores.
type Aggregator struct {
	store LocationStore
	index LocationIndex
	now   func() time.Time
}

// NewAggregator builds an Aggregator. index may be nil.
func NewAggregator(store LocationStore, index LocationIndex) *Aggregator {
	return &Aggregator{store: store, index: index, now: time.Now}
}

// RecordScore adds one post's score to the location named locationName,
// creating the location on first use. A nil score is counted as a post but
// does not move the average.
func (a *Aggregator) RecordScore(ctx context.Context, locationName string, score *int, coords *models.Coordinates) (models.Location, error) {
	key := slug.Make(locationName)
	if key == "" {
		return models.Location{}, errors.Invalid("location name must contain letters or digits")
	}
	if score != nil && (*score < models.MinCleanlinessScore || *score > models.MaxCleanlinessScore) {
		return models.Location{}, errors.Invalid("cleanliness score must be between 1 and 10")
	}
	if coords != nil && !coords.Valid() {
		return models.Location{}, errors.Invalid("coordinates out of range")
	}

	loc, err := a.store.Accumulate(ctx, models.ScoreUpdate{
		Key:         key,
		Name:        locationName,
		Coordinates: coords,
		Score:       score,
		At:          a.now().UTC(),
	})
	if err != nil {
		return models.Location{}, errors.Wrap(err, "DB_ERROR", "Failed to update location", http.StatusInternalServerError)
	}

	if a.index != nil {
		if err := a.index.Put(ctx, loc); err != nil {
			slog.Warn("location index update failed", "location_id", loc.ID, "key", key, "error", err)
			if err := a.index.Forget(ctx, loc.ID); err != nil {
				slog.Warn("failed to evict cached location", "location_id", loc.ID, "error", err)
			}
		}
	}
	slog.Debug("location score recorded",
		"location_id", loc.ID,
		"key", key,
		"average", loc.AverageCleanliness,
		"scored_count", loc.ScoredCount,
	)
	return loc, nil
}
