package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"cleanscore-server/utils/errors"
)

// ErrorMiddleware recovers panics and sends a standardized JSON response
func ErrorMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("panic recovered", "panic", rec, "method", r.Method, "path", r.URL.Path)
					WriteError(w, errors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes an error as a JSON APIError response
func WriteError(w http.ResponseWriter, err error) {
	apiErr := errors.Wrap(err, "UNKNOWN_ERROR", "Unexpected error", errors.ErrInternal.Status)
	if apiErr.Status >= 500 {
		slog.Error("server error", "error", apiErr.Error(), "details", apiErr.Details)
		// Internal details stay in the log.
		apiErr = errors.NewAPIError(apiErr.Code, apiErr.Message, apiErr.Status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	if err := json.NewEncoder(w).Encode(apiErr); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
