package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sagarc03/gallery"
	"github.com/sagarc03/gallery/metrics"
)

// multipartMemory is how much of a multipart form is held in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

type Service interface {
	List(ctx context.Context, req gallery.PageRequest) (gallery.ImagePage, error)
	Upload(ctx context.Context, img gallery.UploadImage, content io.Reader) (gallery.ImageView, error)
	Get(ctx context.Context, id int64) (gallery.ImageDetail, error)
	PostComment(ctx context.Context, c gallery.NewComment) (gallery.Comment, error)
	Ping(ctx context.Context) error
}

// MetricsRecorder receives request and domain events. *metrics.Metrics
// implements it.
type MetricsRecorder interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
	RecordUpload(result string, size int64)
	RecordComment(result string)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	CORS CORSConfig
	// MaxUploadSize caps the upload request body in bytes. 0 means no cap.
	MaxUploadSize int64
	// UploadRedirect is where browser uploads are sent after success.
	UploadRedirect string
	// ExposeErrors includes backend error messages in 500 responses.
	ExposeErrors bool
	// Metrics is optional.
	Metrics MetricsRecorder
	// MetricsHandler is mounted at MetricsPath when both are set.
	MetricsHandler http.Handler
	MetricsPath    string
}

// Handler provides HTTP handlers for the gallery API and pages.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	cfg := *config
	if cfg.UploadRedirect == "" {
		cfg.UploadRedirect = "/images"
	}
	return &Handler{
		config:  cfg,
		service: service,
	}
}

// Router returns an http.Handler with the API, page and operational routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.config.Metrics))
	r.Use(middleware.Recoverer)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Get("/healthz", h.handleHealth)
	if h.config.MetricsHandler != nil && h.config.MetricsPath != "" {
		r.Method(http.MethodGet, h.config.MetricsPath, h.config.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/images", h.handleList)
		r.Post("/image/post", h.handleUpload)
		r.Get("/image/{id}", h.handleGet)
		r.Post("/comment/post", h.handleComment)
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			WriteError(w, http.StatusNotFound, "Not found.")
		})
	})

	r.Get("/", servePage(pageMain))
	r.Get("/images", servePage(pageImages))
	r.Get("/image/upload", servePage(pageImageForm))
	r.Get("/image/{id}", servePage(pageImageDetail))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFoundPage(w)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		logError(r, "health check failed", err)
		_ = WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleList serves one page of images. Unparsable or non-positive page and
// limit values fall back to the defaults.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.service.List(r.Context(), gallery.PageRequest{Page: page, Limit: limit})
	if err != nil {
		h.handleError(w, r, err, errorJSON, "Error fetching images")
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.config.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.recordUpload(metrics.ResultInvalid, 0)
			WriteText(w, http.StatusRequestEntityTooLarge, "File too large.")
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			h.recordUpload(metrics.ResultInvalid, 0)
			WriteText(w, http.StatusBadRequest, "Invalid upload form.")
			return
		}
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	file, header, err := r.FormFile("imageFile")
	if err != nil {
		h.recordUpload(metrics.ResultInvalid, 0)
		WriteText(w, http.StatusBadRequest, "No file uploaded. Please select an image to upload.")
		return
	}
	defer func() { _ = file.Close() }()

	img := gallery.UploadImage{
		Title:       r.FormValue("title"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}

	view, err := h.service.Upload(r.Context(), img, file)
	if err != nil {
		h.recordUpload(metrics.ResultFailed, img.Size)
		h.handleError(w, r, err, errorText, "Failed to process image upload")
		return
	}
	h.recordUpload(metrics.ResultSuccess, img.Size)

	if wantsJSON(r) {
		_ = WriteJSON(w, http.StatusCreated, view)
		return
	}

	http.Redirect(w, r, h.config.UploadRedirect, http.StatusFound)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid image id.")
		return
	}

	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err, errorJSON, "Error fetching image detail")
		return
	}

	_ = WriteJSON(w, http.StatusOK, detail)
}

// CommentResponse is the body of a successful comment post.
type CommentResponse struct {
	Message string          `json:"message"`
	Comment gallery.Comment `json:"comment"`
}

func (h *Handler) handleComment(w http.ResponseWriter, r *http.Request) {
	c, err := decodeComment(r)
	if err != nil {
		h.recordComment(metrics.ResultInvalid)
		WriteError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	comment, err := h.service.PostComment(r.Context(), c)
	if err != nil {
		switch {
		case errors.Is(err, gallery.ErrInvalidInput):
			h.recordComment(metrics.ResultInvalid)
		default:
			h.recordComment(metrics.ResultFailed)
		}
		h.handleError(w, r, err, errorJSON, "Failed to add comment")
		return
	}
	h.recordComment(metrics.ResultSuccess)

	_ = WriteJSON(w, http.StatusCreated, CommentResponse{
		Message: "Comment posted successfully!",
		Comment: comment,
	})
}

func (h *Handler) recordUpload(result string, size int64) {
	if h.config.Metrics != nil {
		h.config.Metrics.RecordUpload(result, size)
	}
}

func (h *Handler) recordComment(result string) {
	if h.config.Metrics != nil {
		h.config.Metrics.RecordComment(result)
	}
}

// wantsJSON reports whether the client asked for a JSON response rather
// than the browser redirect.
func wantsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(strings.TrimSpace(mediaType), "application/json") {
			return true
		}
	}
	return false
}
