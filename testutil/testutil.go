// Package testutil holds in-memory stand-ins for the MongoDB stores and the
// vision analyzer, plus HTTP request helpers shared by package tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cleanscore-server/models"
	"cleanscore-server/utils/errors"

	"github.com/golang-jwt/jwt/v5"
)

// TestSecret signs tokens in handler tests.
const TestSecret = "test-jwt-secret"

// PNG is a minimal byte sequence that http.DetectContentType reports as image/png.
var PNG = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

// LocationStore is an in-memory LocationStore.
type LocationStore struct {
	mu     sync.Mutex
	byKey  map[string]*models.Location
	nextID int
	Err    error
}

func NewLocationStore() *LocationStore {
	return &LocationStore{byKey: make(map[string]*models.Location)}
}

func (s *LocationStore) Accumulate(_ context.Context, u models.ScoreUpdate) (models.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return models.Location{}, s.Err
	}
	loc, ok := s.byKey[u.Key]
	if !ok {
		s.nextID++
		loc = &models.Location{ID: fmt.Sprintf("%024x", s.nextID)}
		s.byKey[u.Key] = loc
	}
	loc.Apply(u)
	return *loc, nil
}

func (s *LocationStore) Get(_ context.Context, id string) (models.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, loc := range s.byKey {
		if loc.ID == id {
			return *loc, nil
		}
	}
	return models.Location{}, errors.NotFound("Location")
}

func (s *LocationStore) List(_ context.Context) ([]models.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	locs := make([]models.Location, 0, len(s.byKey))
	for _, loc := range s.byKey {
		locs = append(locs, *loc)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i].Name < locs[j].Name })
	return locs, nil
}

func (s *LocationStore) Top(ctx context.Context, n int) ([]models.Location, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	scored := all[:0]
	for _, loc := range all {
		if loc.ScoredCount > 0 {
			scored = append(scored, loc)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].AverageCleanliness > scored[j].AverageCleanliness
	})
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored, nil
}

// Len returns the number of distinct locations.
func (s *LocationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}

// ByKey returns the aggregate stored under key.
func (s *LocationStore) ByKey(key string) (models.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.byKey[key]
	if !ok {
		return models.Location{}, false
	}
	return *loc, true
}

// PostStore is an in-memory PostStore.
type PostStore struct {
	mu     sync.Mutex
	posts  []models.Post
	nextID int
}

func NewPostStore() *PostStore {
	return &PostStore{}
}

func (s *PostStore) Insert(_ context.Context, post models.Post) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	post.ID = fmt.Sprintf("%024x", s.nextID)
	s.posts = append(s.posts, post)
	return post.ID, nil
}

func (s *PostStore) Get(_ context.Context, id string) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Post{}, errors.NotFound("Post")
}

func (s *PostStore) List(_ context.Context) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	posts := make([]models.Post, 0, len(s.posts))
	for i := len(s.posts) - 1; i >= 0; i-- {
		posts = append(posts, s.posts[i])
	}
	return posts, nil
}

// ImageStore is an in-memory ImageStore.
type ImageStore struct {
	mu     sync.Mutex
	images map[string][]byte
}

func NewImageStore() *ImageStore {
	return &ImageStore{images: make(map[string][]byte)}
}

func (s *ImageStore) Save(_ context.Context, filename, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("img-%d-%s", len(s.images)+1, filename)
	s.images[id] = append([]byte(nil), data...)
	return id, nil
}

func (s *ImageStore) Open(_ context.Context, id string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.images[id]
	if !ok {
		return nil, errors.NotFound("Image")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Analyzer returns Report, or Err when set, and counts calls.
type Analyzer struct {
	Report models.CleanlinessReport
	Err    error
	calls  atomic.Int32
}

func (a *Analyzer) Analyze(context.Context, []byte, string) (models.CleanlinessReport, error) {
	a.calls.Add(1)
	if a.Err != nil {
		return models.CleanlinessReport{}, a.Err
	}
	return a.Report, nil
}

func (a *Analyzer) Calls() int {
	return int(a.calls.Load())
}

// Token returns a valid bearer token for userID signed with TestSecret.
func Token(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userID": userID,
		"exp":    time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(TestSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

// MakeRequest creates an HTTP test request with an optional JSON body
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Fatalf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into v
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
