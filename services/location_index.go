package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"cleanscore-server/models"

	"github.com/redis/go-redis/v9"
)

const (
	leaderboardKey      = "locations:cleanliness"
	locationsGeoKey     = "locations:geo"
	locationCachePrefix = "location:"
	nearbyLimit         = 50
)

// RedisLocationIndex keeps a JSON cache per location, a sorted set keyed
// by average cleanliness and a GEO set of located places.
type RedisLocationIndex struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocationIndex(client *redis.Client, ttl time.Duration) *RedisLocationIndex {
	return &RedisLocationIndex{client: client, ttl: ttl}
}

// putLocationScript writes the cache entry, leaderboard score and geo
// member only when the incoming snapshot is not older than the cached one.
// post_count grows by one per accumulated post, so it orders snapshots.
//
// KEYS: cache key, leaderboard, geo set
// ARGV: post_count, JSON, ttl ms, id, scored, average, located, lon, lat
var putLocationScript = redis.NewScript(`
local cached = redis.call('GET', KEYS[1])
if cached then
	local ok, current = pcall(cjson.decode, cached)
	if ok and type(current) == 'table' and tonumber(current.post_count) and tonumber(current.post_count) > tonumber(ARGV[1]) then
		return 0
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
if ARGV[5] == '1' then
	redis.call('ZADD', KEYS[2], ARGV[6], ARGV[4])
end
if ARGV[7] == '1' then
	redis.call('GEOADD', KEYS[3], ARGV[8], ARGV[9], ARGV[4])
end
return 1
`)

// Put refreshes the views of loc. A snapshot older than the cached one is
// ignored, so out-of-order writers cannot roll the average back.
func (i *RedisLocationIndex) Put(ctx context.Context, loc models.Location) error {
	locJSON, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	keys := []string{locationCachePrefix + loc.ID, leaderboardKey, locationsGeoKey}
	args := []any{
		loc.PostCount,
		locJSON,
		i.ttl.Milliseconds(),
		loc.ID,
		flag(loc.ScoredCount > 0),
		loc.AverageCleanliness,
		flag(loc.HasCoordinates()),
		loc.Longitude,
		loc.Latitude,
	}
	return putLocationScript.Run(ctx, i.client, keys, args...).Err()
}

// Forget drops the cached entry so the next read goes to the store.
func (i *RedisLocationIndex) Forget(ctx context.Context, id string) error {
	return i.client.Del(ctx, locationCachePrefix+id).Err()
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (i *RedisLocationIndex) Cached(ctx context.Context, id string) (models.Location, bool) {
	locJSON, err := i.client.Get(ctx, locationCachePrefix+id).Result()
	if err != nil {
		return models.Location{}, false
	}
	var loc models.Location
	if err := json.Unmarshal([]byte(locJSON), &loc); err != nil {
		slog.Warn("failed to unmarshal cached location", "location_id", id, "error", err)
		return models.Location{}, false
	}
	return loc, true
}

func (i *RedisLocationIndex) TopIDs(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	return i.client.ZRevRange(ctx, leaderboardKey, 0, int64(n-1)).Result()
}

// NearbyIDs returns ids within radiusKm of the point, closest first.
func (i *RedisLocationIndex) NearbyIDs(ctx context.Context, lat, lon, radiusKm float64) ([]string, error) {
	geoResults, err := i.client.GeoRadius(ctx, locationsGeoKey, lon, lat, &redis.GeoRadiusQuery{
		Radius: radiusKm,
		Unit:   "km",
		Sort:   "ASC",
		Count:  nearbyLimit,
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(geoResults))
	for _, geoResult := range geoResults {
		ids = append(ids, geoResult.Name)
	}
	return ids, nil
}

// Rebuild replaces the leaderboard and geo index with locs.
func (i *RedisLocationIndex) Rebuild(ctx context.Context, locs []models.Location) error {
	if err := i.client.Del(ctx, leaderboardKey, locationsGeoKey).Err(); err != nil {
		return err
	}
	for _, loc := range locs {
		if err := i.Put(ctx, loc); err != nil {
			return err
		}
	}
	slog.Info("location index rebuilt", "locations", len(locs))
	return nil
}
