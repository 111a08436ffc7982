// Package http provides the gallery's HTTP server: the JSON API, the static
// page shells and the operational endpoints.
//
// # Routes
//
//   - GET  /api/images?page=&limit=  one page of images, newest first
//   - POST /api/image/post           multipart upload (imageFile, title)
//   - GET  /api/image/{id}           one image with its comments
//   - POST /api/comment/post         JSON or form body {imageId, content}
//   - GET  /, /images, /image/upload, /image/{id}   HTML shells
//   - GET  /healthz                  metadata store ping
//   - GET  /metrics                  Prometheus exposition, when configured
//
// Upload failures and the missing-file case answer in plain text; every other
// API error is a JSON body {"error": "..."}. Validation failures add a
// "fields" array naming each rejected field.
//
// # Usage
//
//	handlerCfg := http.HandlerConfig{
//	    UploadRedirect: "/images",
//	    ExposeErrors:   true,
//	    Metrics:        m,
//	    MetricsHandler: m.Handler(),
//	    MetricsPath:    "/metrics",
//	}
//	handler := http.NewHandler(&handlerCfg, service)
//	srv := &nethttp.Server{Addr: ":3000", Handler: handler.Router()}
//
// The service parameter must implement the Service interface, which
// *gallery.GalleryService does.
package http
