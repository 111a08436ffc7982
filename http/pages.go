package http

import (
	"embed"
	"log/slog"
	"net/http"
)

//go:embed pages/*.html
var pages embed.FS

const (
	pageMain        = "pages/main.html"
	pageImages      = "pages/images.html"
	pageImageForm   = "pages/image-form.html"
	pageImageDetail = "pages/image-detail.html"
	pageNotFound    = "pages/not-found.html"
)

// servePage serves a static HTML shell. The pages render nothing on the
// server; they load their data from the JSON API.
func servePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := pages.ReadFile(name)
		if err != nil {
			slog.Error("page missing", "page", name, "error", err)
			writeNotFoundPage(w)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// writeNotFoundPage answers unknown page routes with the gallery's 404 page.
func writeNotFoundPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusNotFound)

	body, err := pages.ReadFile(pageNotFound)
	if err != nil {
		slog.Error("page missing", "page", pageNotFound, "error", err)
		_, _ = w.Write([]byte("Page not found."))
		return
	}
	_, _ = w.Write(body)
}
