package services

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"sort"

	"cleanscore-server/models"
	"cleanscore-server/utils/errors"
)

const TopCleanestLimit = 5

type LocationService struct {
	store LocationStore
	index LocationIndex
}

// NewLocationService builds a LocationService. index may be nil, in which
// case every query goes to the store.
func NewLocationService(store LocationStore, index LocationIndex) *LocationService {
	return &LocationService{store: store, index: index}
}

func (s *LocationService) ListLocations(ctx context.Context) ([]models.Location, error) {
	locs, err := s.store.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "Failed to list locations", http.StatusInternalServerError)
	}
	return locs, nil
}

// GetLocation checks the cache before the store and refreshes the cache on
// a miss.
func (s *LocationService) GetLocation(ctx context.Context, id string) (models.Location, error) {
	if s.index != nil {
		if loc, ok := s.index.Cached(ctx, id); ok {
			return loc, nil
		}
	}
	loc, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Location{}, errors.Wrap(err, "DB_ERROR", "Failed to load location", http.StatusInternalServerError)
	}
	if s.index != nil {
		if err := s.index.Put(ctx, loc); err != nil {
			slog.Warn("failed to cache location", "location_id", id, "error", err)
		}
	}
	return loc, nil
}

// TopCleanest returns at most n scored locations ordered by average
// cleanliness, highest first. The leaderboard is tried first; the store
// answers when the leaderboard is unavailable or empty.
func (s *LocationService) TopCleanest(ctx context.Context, n int) ([]models.Location, error) {
	if n <= 0 {
		return []models.Location{}, nil
	}
	if s.index != nil {
		ids, err := s.index.TopIDs(ctx, n)
		switch {
		case err != nil:
			slog.Warn("leaderboard unavailable, falling back to store", "error", err)
		case len(ids) > 0:
			locs, err := s.resolve(ctx, ids)
			if err == nil {
				return rankByAverage(locs, n), nil
			}
			slog.Warn("failed to resolve leaderboard entries", "error", err)
		}
	}
	locs, err := s.store.Top(ctx, n)
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "Failed to rank locations", http.StatusInternalServerError)
	}
	return rankByAverage(locs, n), nil
}

// FindNearby returns located places within radiusKm, closest first.
func (s *LocationService) FindNearby(ctx context.Context, lat, lon, radiusKm float64) ([]models.Location, error) {
	if !(models.Coordinates{Latitude: lat, Longitude: lon}).Valid() {
		return nil, errors.Invalid("lat and lon must be valid coordinates")
	}
	// NaN fails every comparison.
	if !(radiusKm > 0) || math.IsInf(radiusKm, 1) {
		return nil, errors.Invalid("radius must be a positive number of kilometres")
	}
	if s.index == nil {
		return nil, errors.NewAPIError("GEO_UNAVAILABLE", "Geo index is not configured", http.StatusServiceUnavailable)
	}
	ids, err := s.index.NearbyIDs(ctx, lat, lon, radiusKm)
	if err != nil {
		return nil, errors.Wrap(err, "CACHE_ERROR", "Failed to query geo index", http.StatusInternalServerError)
	}
	slog.Debug("nearby locations", "count", len(ids), "radius_km", radiusKm)
	return s.resolve(ctx, ids)
}

// resolve loads locations for ids in order, skipping ids that no longer exist.
func (s *LocationService) resolve(ctx context.Context, ids []string) ([]models.Location, error) {
	locs := make([]models.Location, 0, len(ids))
	for _, id := range ids {
		loc, err := s.GetLocation(ctx, id)
		if errors.IsNotFound(err) {
			slog.Warn("index refers to missing location", "location_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func rankByAverage(locs []models.Location, n int) []models.Location {
	ranked := make([]models.Location, 0, len(locs))
	for _, loc := range locs {
		if loc.ScoredCount > 0 {
			ranked = append(ranked, loc)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AverageCleanliness > ranked[j].AverageCleanliness
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
