package middleware

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cleanscore-server/utils/errors"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestJWTMiddleware(t *testing.T) {
	var gotUserID string
	handler := JWTMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	valid := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"userID": "user-1",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	expired := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"userID": "user-1",
		"exp":    time.Now().Add(-time.Hour).Unix(),
	})
	wrongSecret := signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{
		"userID": "user-1",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	noUser := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	noExpiry := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"userID": "user-1",
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + wrongSecret, http.StatusUnauthorized},
		{"no userID claim", "Bearer " + noUser, http.StatusUnauthorized},
		{"no expiry", "Bearer " + noExpiry, http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotUserID = ""
			req := httptest.NewRequest(http.MethodPost, "/posts", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.wantStatus, w.Body.String())
			}
			if tc.wantStatus == http.StatusOK && gotUserID != "user-1" {
				t.Errorf("userID in context = %q", gotUserID)
			}
			if tc.wantStatus == http.StatusUnauthorized {
				var apiErr errors.APIError
				if err := json.NewDecoder(w.Body).Decode(&apiErr); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if apiErr.Code != "UNAUTHORIZED" {
					t.Errorf("code = %q", apiErr.Code)
				}
			}
		})
	}
}

func TestUserIDFromContextEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := UserIDFromContext(req.Context()); ok {
		t.Error("expected no user in a bare context")
	}
	if _, ok := UserIDFromContext(WithUserID(req.Context(), "")); ok {
		t.Error("expected empty user id to be rejected")
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantDetails string
	}{
		{"api error", errors.Invalid("location is required"), http.StatusBadRequest, "INVALID_INPUT", "location is required"},
		{"not found", errors.NotFound("Location"), http.StatusNotFound, "NOT_FOUND", ""},
		{"plain error hides details", stderrors.New("mongo: connection reset"), http.StatusInternalServerError, "UNKNOWN_ERROR", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tc.err)

			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var apiErr errors.APIError
			if err := json.NewDecoder(w.Body).Decode(&apiErr); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if apiErr.Code != tc.wantCode || apiErr.Details != tc.wantDetails {
				t.Errorf("body = %+v", apiErr)
			}
		})
	}
}

func TestErrorMiddlewareRecoversPanic(t *testing.T) {
	handler := ErrorMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("handled"))
	})
	handler := CORSMiddleware([]string{"http://localhost:5173"})(next)

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/posts", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", w.Code)
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
			t.Error("expected origin to be echoed")
		}
		if w.Body.Len() != 0 {
			t.Error("preflight should not call next handler")
		}
	})

	t.Run("disallowed origin passes through without headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/posts", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("did not expect CORS headers")
		}
		if w.Body.String() != "handled" {
			t.Error("expected next handler to run")
		}
	})

	t.Run("wildcard", func(t *testing.T) {
		h := CORSMiddleware([]string{"*"})(next)
		req := httptest.NewRequest(http.MethodGet, "/posts", nil)
		req.Header.Set("Origin", "https://any.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Header().Get("Access-Control-Allow-Origin") != "https://any.example" {
			t.Error("expected wildcard to allow origin")
		}
	})
}

func TestLoggingMiddlewarePreservesResponse(t *testing.T) {
	handler := LoggingMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"1"}`))
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/posts", nil))

	if w.Code != http.StatusCreated || w.Body.String() != `{"id":"1"}` {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}
