package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := NotFound("Location")
	if !stderrors.Is(err, ErrNotFound) {
		t.Fatalf("expected %v to match ErrNotFound", err)
	}
	if stderrors.Is(err, ErrConflict) {
		t.Fatalf("did not expect %v to match ErrConflict", err)
	}

	wrapped := fmt.Errorf("lookup: %w", Invalid("bad id"))
	if !stderrors.Is(wrapped, ErrInvalidInput) {
		t.Fatalf("expected wrapped error to match ErrInvalidInput")
	}
}

func TestWrap(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"plain error", stderrors.New("boom"), "DB_ERROR", http.StatusInternalServerError},
		{"api error kept", ErrConflict, "CONFLICT", http.StatusConflict},
		{"wrapped api error kept", fmt.Errorf("ctx: %w", NotFound("Post")), "NOT_FOUND", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Wrap(tc.err, "DB_ERROR", "database failure", http.StatusInternalServerError)
			if got.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tc.wantCode)
			}
			if got.Status != tc.wantStatus {
				t.Errorf("status = %d, want %d", got.Status, tc.wantStatus)
			}
		})
	}
}

func TestWrapKeepsDetails(t *testing.T) {
	got := Wrap(stderrors.New("connection refused"), "DB_ERROR", "database failure", http.StatusInternalServerError)
	if got.Details != "connection refused" {
		t.Errorf("details = %q", got.Details)
	}
	if got.Error() != "DB_ERROR: database failure" {
		t.Errorf("Error() = %q", got.Error())
	}
}
