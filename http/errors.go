package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/sagarc03/gallery"
)

type errorFormat int

const (
	errorJSON errorFormat = iota
	errorText
)

// handleError writes the response for a service error. action prefixes the
// message of 500 responses, which only carry the underlying error when
// ExposeErrors is set.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, format errorFormat, action string) {
	var verr *gallery.ValidationError
	switch {
	case errors.As(err, &verr):
		logDebug(r, "validation failed", err)
		WriteValidationError(w, verr)
		return
	case errors.Is(err, gallery.ErrNotFound):
		logDebug(r, "not found", err)
		writeFormatted(w, format, http.StatusNotFound, "Image not found.")
		return
	case errors.Is(err, gallery.ErrInvalidInput):
		logDebug(r, "invalid input", err)
		writeFormatted(w, format, http.StatusBadRequest, "Invalid input.")
		return
	case errors.Is(err, context.Canceled):
		logDebug(r, "request canceled", err)
	default:
		logError(r, "request error", err)
	}

	message := action + "."
	if h.config.ExposeErrors {
		message = action + ": " + err.Error()
	}
	writeFormatted(w, format, http.StatusInternalServerError, message)
}

func writeFormatted(w http.ResponseWriter, format errorFormat, code int, message string) {
	if format == errorText {
		WriteText(w, code, message)
		return
	}
	WriteError(w, code, message)
}
