package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/sagarc03/gallery"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationErrorResponse lists every rejected field.
type ValidationErrorResponse struct {
	Error  string               `json:"error"`
	Fields []gallery.FieldError `json:"fields"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, message string) {
	if err := WriteJSON(w, code, ErrorResponse{Error: message}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// WriteValidationError writes a 400 response naming each failed field.
func WriteValidationError(w http.ResponseWriter, verr *gallery.ValidationError) {
	if err := WriteJSON(w, http.StatusBadRequest, ValidationErrorResponse{
		Error:  "Invalid input.",
		Fields: verr.Fields,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// WriteText writes a plain text response
func WriteText(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, message)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
