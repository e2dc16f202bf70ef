package handlers

import (
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"cleanscore-server/middleware"
	"cleanscore-server/models"
	"cleanscore-server/services"
	"cleanscore-server/utils/errors"

	"github.com/gorilla/mux"
)

// multipartOverhead is the room left for form fields and boundaries on top
// of the image limit.
const multipartOverhead = 1 << 20

type PostHandler struct {
	postService   *services.PostService
	maxImageBytes int64
}

func NewPostHandler(postService *services.PostService, maxImageBytes int64) *PostHandler {
	return &PostHandler{postService: postService, maxImageBytes: maxImageBytes}
}

// createPostRequest is the JSON form of a new post. Any cleanliness_score
// sent by the client is ignored.
type createPostRequest struct {
	Image     string   `json:"image"`
	Location  string   `json:"location"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, errors.ErrUnauthorized)
		return
	}

	// base64 inflates by 4/3, so the JSON body limit covers that too.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes*4/3+multipartOverhead)

	var (
		input services.CreatePostInput
		err   error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		input, err = h.decodeMultipart(r)
	} else {
		input, err = decodeJSONPost(r)
	}
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	post, err := h.postService.CreatePost(r.Context(), userID, input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) decodeMultipart(r *http.Request) (services.CreatePostInput, error) {
	if err := r.ParseMultipartForm(h.maxImageBytes + multipartOverhead); err != nil {
		return services.CreatePostInput{}, requestBodyError(err)
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return services.CreatePostInput{}, errors.Invalid("image file is required")
	}
	defer file.Close()
	image, err := io.ReadAll(file)
	if err != nil {
		return services.CreatePostInput{}, requestBodyError(err)
	}

	coords, err := parseCoordinates(r.FormValue("latitude"), r.FormValue("longitude"))
	if err != nil {
		return services.CreatePostInput{}, err
	}
	return services.CreatePostInput{
		Location:    r.FormValue("location"),
		Image:       image,
		Coordinates: coords,
	}, nil
}

func decodeJSONPost(r *http.Request) (services.CreatePostInput, error) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return services.CreatePostInput{}, requestBodyError(err)
	}
	image, err := decodeImage(req.Image)
	if err != nil {
		return services.CreatePostInput{}, err
	}

	var coords *models.Coordinates
	switch {
	case req.Latitude != nil && req.Longitude != nil:
		coords = &models.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude}
	case req.Latitude != nil || req.Longitude != nil:
		return services.CreatePostInput{}, errors.Invalid("latitude and longitude must be given together")
	}
	return services.CreatePostInput{Location: req.Location, Image: image, Coordinates: coords}, nil
}

// decodeImage accepts plain base64 or a data URL.
func decodeImage(encoded string) ([]byte, error) {
	if i := strings.Index(encoded, "base64,"); i >= 0 {
		encoded = encoded[i+len("base64,"):]
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, errors.Invalid("image is required")
	}
	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Invalid("image must be base64 encoded")
	}
	return image, nil
}

func parseCoordinates(lat, lon string) (*models.Coordinates, error) {
	if lat == "" && lon == "" {
		return nil, nil
	}
	if lat == "" || lon == "" {
		return nil, errors.Invalid("latitude and longitude must be given together")
	}
	latitude, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, errors.Invalid("latitude must be a number")
	}
	longitude, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, errors.Invalid("longitude must be a number")
	}
	return &models.Coordinates{Latitude: latitude, Longitude: longitude}, nil
}

func requestBodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return errors.ErrTooLarge
	}
	return errors.Invalid("malformed request body")
}

func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postService.ListPosts(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.postService.GetPost(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	postID := mux.Vars(r)["id"]
	rc, contentType, err := h.postService.OpenImage(r.Context(), postID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("failed to stream image", "post_id", postID, "error", err)
	}
}
