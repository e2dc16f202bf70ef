package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"cleanscore-server/config"
	"cleanscore-server/services"
	"cleanscore-server/utils/logger"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const connectTimeout = 10 * time.Second

// backends holds the connections shared by every command.
type backends struct {
	cfg   config.Config
	mongo *mongo.Client
	db    *mongo.Database
	redis *redis.Client
}

func connect(ctx context.Context) (*backends, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.LogLevel, os.Stdout)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := services.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &backends{cfg: cfg, mongo: client, db: client.Database(cfg.MongoDatabase), redis: rdb}, nil
}

func (b *backends) Close() {
	_ = b.redis.Close()
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	_ = b.mongo.Disconnect(ctx)
}

func (b *backends) locationIndex() *services.RedisLocationIndex {
	return services.NewRedisLocationIndex(b.redis, b.cfg.CacheTTL)
}
