package services

import (
	"context"
	"testing"
	"time"

	"cleanscore-server/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestIndex(t *testing.T) *RedisLocationIndex {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocationIndex(client, time.Hour)
}

func TestRedisLocationIndexPutAndCached(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()
	loc := models.Location{ID: "loc-1", Key: "beach-a", Name: "Beach A", AverageCleanliness: 7, ScoredCount: 2, PostCount: 2}

	if err := index.Put(ctx, loc); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := index.Cached(ctx, "loc-1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Name != "Beach A" || got.AverageCleanliness != 7 {
		t.Errorf("cached = %+v", got)
	}
	if _, ok := index.Cached(ctx, "missing"); ok {
		t.Error("expected cache miss")
	}
}

func TestRedisLocationIndexTopIDs(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()
	for _, loc := range []models.Location{
		{ID: "a", AverageCleanliness: 3, ScoredCount: 1},
		{ID: "b", AverageCleanliness: 9, ScoredCount: 1},
		{ID: "c", AverageCleanliness: 6, ScoredCount: 1},
		{ID: "unscored", PostCount: 1},
	} {
		if err := index.Put(ctx, loc); err != nil {
			t.Fatal(err)
		}
	}
	// Re-scoring moves the member rather than duplicating it.
	if err := index.Put(ctx, models.Location{ID: "a", AverageCleanliness: 10, ScoredCount: 2}); err != nil {
		t.Fatal(err)
	}

	ids, err := index.TopIDs(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("TopIDs(2) = %v, want [a b]", ids)
	}
	all, _ := index.TopIDs(ctx, 10)
	if len(all) != 3 {
		t.Errorf("TopIDs(10) = %v, want 3 scored ids", all)
	}
	if none, _ := index.TopIDs(ctx, 0); len(none) != 0 {
		t.Errorf("TopIDs(0) = %v", none)
	}
}

func TestRedisLocationIndexNearbyIDs(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()
	locs := []models.Location{
		{ID: "haeundae", Latitude: 35.1587, Longitude: 129.1604, Located: true},
		{ID: "gwangalli", Latitude: 35.1532, Longitude: 129.1186, Located: true},
		{ID: "seoul", Latitude: 37.5665, Longitude: 126.9780, Located: true},
		{ID: "placeholder"},
	}
	for _, loc := range locs {
		if err := index.Put(ctx, loc); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := index.NearbyIDs(ctx, 35.1587, 129.1604, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "haeundae" || ids[1] != "gwangalli" {
		t.Errorf("NearbyIDs = %v, want [haeundae gwangalli]", ids)
	}
}

func TestRedisLocationIndexRebuild(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()
	if err := index.Put(ctx, models.Location{ID: "stale", AverageCleanliness: 10, ScoredCount: 1}); err != nil {
		t.Fatal(err)
	}

	err := index.Rebuild(ctx, []models.Location{
		{ID: "fresh", AverageCleanliness: 4, ScoredCount: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	ids, _ := index.TopIDs(ctx, 5)
	if len(ids) != 1 || ids[0] != "fresh" {
		t.Errorf("after rebuild TopIDs = %v, want [fresh]", ids)
	}
}

func TestRedisLocationIndexIgnoresOlderSnapshot(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()
	newer := models.Location{ID: "loc", PostCount: 3, ScoredCount: 3, AverageCleanliness: 6}
	older := models.Location{ID: "loc", PostCount: 2, ScoredCount: 2, AverageCleanliness: 9}

	if err := index.Put(ctx, newer); err != nil {
		t.Fatal(err)
	}
	if err := index.Put(ctx, older); err != nil {
		t.Fatal(err)
	}

	got, ok := index.Cached(ctx, "loc")
	if !ok || got.PostCount != 3 || got.AverageCleanliness != 6 {
		t.Fatalf("cached = %+v, want the post_count 3 snapshot", got)
	}
	score, err := index.client.ZScore(ctx, leaderboardKey, "loc").Result()
	if err != nil || score != 6 {
		t.Errorf("leaderboard score = %v, %v; want 6", score, err)
	}
}

func TestRedisLocationIndexOriginIsLocated(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()
	if err := index.Put(ctx, models.Location{ID: "null-island", Located: true}); err != nil {
		t.Fatal(err)
	}
	ids, err := index.NearbyIDs(ctx, 0.01, 0.01, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "null-island" {
		t.Errorf("NearbyIDs = %v, want [null-island]", ids)
	}
}

func TestRedisLocationIndexForget(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()
	if err := index.Put(ctx, models.Location{ID: "loc", PostCount: 1}); err != nil {
		t.Fatal(err)
	}
	if err := index.Forget(ctx, "loc"); err != nil {
		t.Fatal(err)
	}
	if _, ok := index.Cached(ctx, "loc"); ok {
		t.Error("expected cache entry to be gone")
	}
}
