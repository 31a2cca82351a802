// Package handlers provides the HTTP handlers of the medcheck API: extraction, ingredient
// search, interaction analysis, the per-user product and profile store, and health.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/logging"
)

// errorResponse is the JSON error envelope
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// RespondWithJSON writes payload as JSON with the given status
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

// RespondWithError writes the {"error","message","code"} envelope
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, errorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}

// statusForError maps the domain sentinels to HTTP statuses
func statusForError(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, entities.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrCatalogUnavailable), errors.Is(err, entities.ErrRecognizerUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondWithDomainError logs server-side failures and hides their details from clients
func respondWithDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusForError(err)

	switch code {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusRequestEntityTooLarge:
		RespondWithError(w, code, err.Error())
	case http.StatusServiceUnavailable:
		logging.Warn("Dependency unavailable", "path", r.URL.Path, "error", err)
		RespondWithError(w, code, unavailableMessage(err))
	case http.StatusGatewayTimeout:
		logging.Warn("Request timed out", "path", r.URL.Path, "error", err)
		RespondWithError(w, code, "The analysis took too long, please retry")
	default:
		logging.Error("Request failed", "path", r.URL.Path, "error", err)
		RespondWithError(w, code, "Internal server error")
	}
}

func unavailableMessage(err error) string {
	if errors.Is(err, entities.ErrRecognizerUnavailable) {
		return "Image recognition is not available"
	}
	return "The ingredient catalog is not available"
}

// decodeJSON reads one JSON document into dst. Errors wrap ErrInvalidInput, except an
// oversized body which keeps its *http.MaxBytesError.
func decodeJSON(r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("content type must be application/json: %w", entities.ErrInvalidInput)
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty: %w", entities.ErrInvalidInput)
		}
		return fmt.Errorf("malformed JSON body: %w", entities.ErrInvalidInput)
	}
	if dec.More() {
		return fmt.Errorf("request body must hold a single JSON document: %w", entities.ErrInvalidInput)
	}
	return nil
}

// invalid builds an ErrInvalidInput with a client-facing message
func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), entities.ErrInvalidInput)
}

// formatUptimeHuman formats a duration as "1d 2h 3m 4s", dropping leading zero units
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}
