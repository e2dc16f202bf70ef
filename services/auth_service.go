package services

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"cleanscore-server/models"
	"cleanscore-server/utils/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenTTL          = 24 * time.Hour
	MinPasswordLength = 8
)

// Register creates a new user and returns its public id
func (s *UserService) Register(ctx context.Context, username, email, password string) (string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateRegistration(username, email, password); err != nil {
		return "", err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "HASH_ERROR", "failed to hash password", http.StatusInternalServerError)
	}

	user := models.User{
		PublicID:     uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(passwordHash),
		CreatedAt:    s.now().UTC(),
	}

	if _, err := s.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", errors.NewAPIError(errors.ErrConflict.Code, "Username or email already registered", http.StatusConflict)
		}
		return "", errors.Wrap(err, "DB_ERROR", "failed to create user in database", http.StatusInternalServerError)
	}

	s.cacheUser(ctx, user)
	return user.PublicID, nil
}

func validateRegistration(username, email, password string) error {
	if username == "" {
		return errors.Invalid("username is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.Invalid("email is invalid")
	}
	if len(password) < MinPasswordLength {
		return errors.Invalid("password must be at least 8 characters")
	}
	return nil
}

// Login authenticates a user and returns a JWT
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	invalid := errors.NewAPIError("INVALID_CREDENTIALS", "Invalid username or password", http.StatusUnauthorized)

	var user models.User
	err := s.collection.FindOne(ctx, bson.M{"username": strings.TrimSpace(username)}).Decode(&user)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return "", invalid
	}
	if err != nil {
		return "", errors.Wrap(err, "DB_ERROR", "Failed to look up user", http.StatusInternalServerError)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", invalid
	}

	token, err := IssueToken(s.jwtSecret, user, s.now())
	if err != nil {
		return "", errors.Wrap(err, "JWT_ERROR", "Failed to generate token", http.StatusInternalServerError)
	}
	s.cacheUser(ctx, user)
	return token, nil
}

// IssueToken signs an HS256 token carrying the user's public id.
func IssueToken(secret string, user models.User, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userID":   user.PublicID,
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(TokenTTL).Unix(),
	})
	return token.SignedString([]byte(secret))
}
