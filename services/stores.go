package services

import (
	"context"
	"io"

	"cleanscore-server/models"
)

// LocationStore persists location aggregates. Accumulate must apply the
// update atomically per key so concurrent posts never drop a score.
type LocationStore interface {
	Accumulate(ctx context.Context, update models.ScoreUpdate) (models.Location, error)
	Get(ctx context.Context, id string) (models.Location, error)
	List(ctx context.Context) ([]models.Location, error)
	// Top returns at most n scored locations, highest average first.
	Top(ctx context.Context, n int) ([]models.Location, error)
}

type PostStore interface {
	Insert(ctx context.Context, post models.Post) (string, error)
	Get(ctx context.Context, id string) (models.Post, error)
	List(ctx context.Context) ([]models.Post, error)
}

type ImageStore interface {
	Save(ctx context.Context, filename, contentType string, data []byte) (string, error)
	Open(ctx context.Context, id string) (io.ReadCloser, error)
}

// LocationIndex is a best-effort secondary view of locations: a cache,
// a leaderboard ordered by average and a geo index.
type LocationIndex interface {
	Put(ctx context.Context, loc models.Location) error
	Forget(ctx context.Context, id string) error
	Cached(ctx context.Context, id string) (models.Location, bool)
	TopIDs(ctx context.Context, n int) ([]string, error)
	NearbyIDs(ctx context.Context, lat, lon, radiusKm float64) ([]string, error)
}
