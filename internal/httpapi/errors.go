package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/audit"
	"cloudops.org/internal/obs"
)

// errorBody is the single error envelope returned to callers.
type errorBody struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
	RequestID string         `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err through the taxonomy. Anything that is not an
// *apperr.Error becomes an opaque 500; the cause stays in the server log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		obs.Error("unhandled error", map[string]any{
			"error":          err.Error(),
			"path":           r.URL.Path,
			"correlation_id": audit.CorrelationIDFromContext(r.Context()),
		})
		ae = apperr.Internal(err)
	}
	if ae.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	if ae.Type == apperr.TypeRateLimitExceeded {
		if retry, ok := ae.Details["retry_after"].(int); ok {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
		}
	}
	body := errorBody{
		Type:      ae.Type,
		Message:   ae.Message,
		Details:   ae.Details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: audit.CorrelationIDFromContext(r.Context()),
	}
	writeJSON(w, ae.Status, map[string]any{"error": body})
}

func notFoundPath() *apperr.Error {
	return &apperr.Error{
		Type:    apperr.TypeNotFound,
		Status:  http.StatusNotFound,
		Message: "resource not found",
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, &apperr.Error{
		Type:    apperr.TypeValidation,
		Status:  http.StatusMethodNotAllowed,
		Message: "method not allowed",
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation(err.Error())
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return apperr.Validation("unexpected data after JSON body")
		}
		return apperr.Validation(err.Error())
	}
	return nil
}
