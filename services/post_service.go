package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"cleanscore-server/models"
	"cleanscore-server/utils/errors"
	"cleanscore-server/utils/slug"

	"github.com/google/uuid"
)

const MaxLocationNameLength = 255

// CreatePostInput is a validated-by-service submission. There is no score
// field: scores only ever come from the Analyzer.
type CreatePostInput struct {
	Location    string
	Image       []byte
	Coordinates *models.Coordinates
}

type PostService struct {
	posts         PostStore
	images        ImageStore
	analyzer      Analyzer
	aggregator    *Aggregator
	maxImageBytes int64
	now           func() time.Time
}

func NewPostService(posts PostStore, images ImageStore, analyzer Analyzer, aggregator *Aggregator, maxImageBytes int64) *PostService {
	return &PostService{
		posts:         posts,
		images:        images,
		analyzer:      analyzer,
		aggregator:    aggregator,
		maxImageBytes: maxImageBytes,
		now:           time.Now,
	}
}

// CreatePost stores the image, scores it and records the score against the
// post's location. An analyzer failure is not an error: the post is kept
// with a nil score.
func (s *PostService) CreatePost(ctx context.Context, userID string, in CreatePostInput) (models.Post, error) {
	if userID == "" {
		return models.Post{}, errors.ErrUnauthorized
	}
	location := strings.TrimSpace(in.Location)
	if err := s.validate(location, in); err != nil {
		return models.Post{}, err
	}
	contentType := http.DetectContentType(in.Image)
	if !strings.HasPrefix(contentType, "image/") {
		return models.Post{}, errors.Invalid(fmt.Sprintf("unsupported image type %q", contentType))
	}
	key := slug.Make(location)

	imageID, err := s.images.Save(ctx, uuid.NewString(), contentType, in.Image)
	if err != nil {
		return models.Post{}, errors.Wrap(err, "STORAGE_ERROR", "Failed to store image", http.StatusInternalServerError)
	}

	post := models.Post{
		UserID:           userID,
		ImageID:          imageID,
		ImageContentType: contentType,
		Location:         location,
		LocationKey:      key,
		Coordinates:      in.Coordinates,
		CreatedAt:        s.now().UTC(),
	}

	report, err := s.analyzer.Analyze(ctx, in.Image, contentType)
	if err != nil {
		slog.Warn("image analysis failed, storing post without score", "location_key", key, "error", err)
	} else {
		score, trash := report.Score, report.TrashPresent
		post.CleanlinessScore = &score
		post.TrashPresent = &trash
		post.Details = report.Details
	}

	post.ID, err = s.posts.Insert(ctx, post)
	if err != nil {
		return models.Post{}, errors.Wrap(err, "DB_ERROR", "Failed to create post", http.StatusInternalServerError)
	}
	post.ImageURL = ImageURL(post.ID)

	if _, err := s.aggregator.RecordScore(ctx, location, post.CleanlinessScore, post.Coordinates); err != nil {
		slog.Error("post stored but location not updated", "post_id", post.ID, "location_key", key, "error", err)
		return models.Post{}, err
	}
	slog.Info("post created", "post_id", post.ID, "user_id", userID, "location_key", key, "scored", post.CleanlinessScore != nil)
	return post, nil
}

func (s *PostService) validate(location string, in CreatePostInput) error {
	if location == "" {
		return errors.Invalid("location is required")
	}
	if utf8.RuneCountInString(location) > MaxLocationNameLength {
		return errors.Invalid(fmt.Sprintf("location must be at most %d characters", MaxLocationNameLength))
	}
	if slug.Make(location) == "" {
		return errors.Invalid("location name must contain letters or digits")
	}
	if len(in.Image) == 0 {
		return errors.Invalid("image is required")
	}
	if s.maxImageBytes > 0 && int64(len(in.Image)) > s.maxImageBytes {
		return errors.ErrTooLarge
	}
	if in.Coordinates != nil && !in.Coordinates.Valid() {
		return errors.Invalid("coordinates out of range")
	}
	return nil
}

func (s *PostService) ListPosts(ctx context.Context) ([]models.Post, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "Failed to list posts", http.StatusInternalServerError)
	}
	for i := range posts {
		posts[i].ImageURL = ImageURL(posts[i].ID)
	}
	return posts, nil
}

func (s *PostService) GetPost(ctx context.Context, id string) (models.Post, error) {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return models.Post{}, errors.Wrap(err, "DB_ERROR", "Failed to load post", http.StatusInternalServerError)
	}
	post.ImageURL = ImageURL(post.ID)
	return post, nil
}

// OpenImage returns the stored image of a post and its content type. The
// caller closes the reader.
func (s *PostService) OpenImage(ctx context.Context, postID string) (io.ReadCloser, string, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, "", err
	}
	rc, err := s.images.Open(ctx, post.ImageID)
	if err != nil {
		return nil, "", errors.Wrap(err, "STORAGE_ERROR", "Failed to open image", http.StatusInternalServerError)
	}
	return rc, post.ImageContentType, nil
}

func ImageURL(postID string) string {
	return "/posts/" + postID + "/image"
}
