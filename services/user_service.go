package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"time"

	"cleanscore-server/models"
	"cleanscore-server/utils/errors"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const userCachePrefix = "user:"

type UserService struct {
	collection  *mongo.Collection
	redisClient *redis.Client
	jwtSecret   string
	cacheTTL    time.Duration
	now         func() time.Time
}

func NewUserService(db *mongo.Database, redisClient *redis.Client, jwtSecret string, cacheTTL time.Duration) *UserService {
	return &UserService{
		collection:  db.Collection(usersCollection),
		redisClient: redisClient,
		jwtSecret:   jwtSecret,
		cacheTTL:    cacheTTL,
		now:         time.Now,
	}
}

// GetUser retrieves a user by public id from Redis or MongoDB
func (s *UserService) GetUser(ctx context.Context, publicID string) (models.User, error) {
	var user models.User

	// Check Redis first
	userJSON, err := s.redisClient.Get(ctx, userCachePrefix+publicID).Result()
	if err == nil {
		if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
			slog.Warn("failed to unmarshal cached user", "user_id", publicID, "error", err)
		} else {
			return user, nil
		}
	}

	err = s.collection.FindOne(ctx, bson.M{"public_id": bson.M{"$eq": publicID}}).Decode(&user)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, errors.NotFound("User")
	}
	if err != nil {
		return models.User{}, err
	}

	s.cacheUser(ctx, user)
	return user, nil
}

func (s *UserService) cacheUser(ctx context.Context, user models.User) {
	userJSON, err := json.Marshal(user)
	if err != nil {
		slog.Warn("failed to marshal user", "user_id", user.PublicID, "error", err)
		return
	}
	if err := s.redisClient.Set(ctx, userCachePrefix+user.PublicID, userJSON, s.cacheTTL).Err(); err != nil {
		slog.Warn("failed to cache user", "user_id", user.PublicID, "error", err)
	}
}
