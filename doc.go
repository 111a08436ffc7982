// Package gallery provides the core of a small image-gallery backend: image
// uploads backed by object storage, image and comment metadata backed by a
// relational database, and paginated listings with CDN URLs.
//
// # Key Components
//
//   - GalleryService: Main service combining the metadata repository and object storage
//   - ImageRepo: Interface for metadata persistence (PostgreSQL, SQLite)
//   - ObjectStorage: Interface for object operations (S3, local filesystem)
//
// # Upload Saga
//
// An upload is two steps: the object is written to storage, then the image row
// is created. When the row cannot be created the service deletes the object it
// just wrote. Objects that survive a failed compensation (or a crash between
// the two steps) are unreferenced by any row and are removed by Reconcile.
//
// # Example Usage
//
//	service, err := gallery.NewGalleryService(repo, storage, gallery.ServiceConfig{
//	    CDNDomain: "cdn.example.com",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Upload an image
//	view, err := service.Upload(ctx, gallery.UploadImage{Filename: "cat.png", ContentType: "image/png", Size: n}, reader)
//
//	// List the second page, ten per page
//	page, err := service.List(ctx, gallery.PageRequest{Page: 2, Limit: 10})
//
// See the http package for the REST API and the database package for the
// metadata backends.
package gallery
