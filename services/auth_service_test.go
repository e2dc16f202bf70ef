package services

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"cleanscore-server/models"
	"cleanscore-server/utils/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestIssueToken(t *testing.T) {
	now := time.Now()
	signed, err := IssueToken("secret", models.User{PublicID: "pub-1", Username: "sora"}, now)
	if err != nil {
		t.Fatal(err)
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) {
		return []byte("secret"), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		t.Fatalf("parse: %v", err)
	}
	if claims["userID"] != "pub-1" || claims["username"] != "sora" {
		t.Errorf("claims = %v", claims)
	}
	exp, _ := claims.GetExpirationTime()
	if exp == nil || exp.Unix() != now.Add(TokenTTL).Unix() {
		t.Errorf("exp = %v", exp)
	}
}

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  bool
	}{
		{"valid", "sora", "sora@example.com", "longenough", false},
		{"missing username", "", "sora@example.com", "longenough", true},
		{"bad email", "sora", "not-an-email", "longenough", true},
		{"short password", "sora", "sora@example.com", "short", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validateRegistration(tc.username, tc.email, tc.password)
			if tc.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !stderrors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("err = %v, want invalid input", err)
			}
		})
	}
}

func TestRegisterLoginAndGetUser(t *testing.T) {
	db := newTestDatabase(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	service := NewUserService(db, client, "secret", time.Hour)
	ctx := context.Background()

	id, err := service.Register(ctx, "sora", "Sora@Example.com", "password123")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := service.Register(ctx, "sora", "other@example.com", "password123"); !stderrors.Is(err, errors.ErrConflict) {
		t.Errorf("duplicate err = %v, want conflict", err)
	}

	if _, err := service.Login(ctx, "sora", "wrong-password"); err == nil {
		t.Error("expected login failure with wrong password")
	}
	if token, err := service.Login(ctx, "sora", "password123"); err != nil || token == "" {
		t.Fatalf("Login = %q, %v", token, err)
	}

	mr.FlushAll()
	user, err := service.GetUser(ctx, id)
	if err != nil || user.Email != "sora@example.com" {
		t.Fatalf("GetUser = %+v, %v", user, err)
	}
	if !mr.Exists(userCachePrefix + id) {
		t.Error("expected user to be cached after lookup")
	}
	if _, err := service.GetUser(ctx, "missing"); !errors.IsNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestLoginReportsStoreFailureAsServerError(t *testing.T) {
	client, err := mongo.Connect(context.Background(),
		options.Client().ApplyURI("mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	service := NewUserService(client.Database("unreachable"), rdb, "secret", time.Hour)
	_, err = service.Login(context.Background(), "sora", "password123")

	var apiErr *errors.APIError
	if !stderrors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Status != 500 || apiErr.Code != "DB_ERROR" {
		t.Errorf("got %s %d, want DB_ERROR 500", apiErr.Code, apiErr.Status)
	}
}
