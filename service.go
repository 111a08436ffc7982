package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// ImageRepo defines the interface for image and comment metadata persistence.
// Implementations must be safe for concurrent use.
//
// All methods accept a context for cancellation and timeout control.
type ImageRepo interface {
	// CreateImage inserts a new image row and returns it with its assigned ID
	// and creation time.
	//
	// Returns:
	//   - Image: The stored row
	//   - error: Any database error, including a storage key conflict
	CreateImage(ctx context.Context, img NewImage) (Image, error)

	// GetImage retrieves one image and all of its comments, newest first.
	//
	// Returns:
	//   - Image: The image row
	//   - []Comment: Its comments ordered by created_at descending; empty, not nil
	//   - error: ErrNotFound if no image has this ID, or other database errors
	GetImage(ctx context.Context, id int64) (Image, []Comment, error)

	// ListImages returns at most limit images ordered by created_at descending,
	// skipping the first offset rows.
	ListImages(ctx context.Context, offset, limit int) ([]Image, error)

	// CountImages returns the total number of images.
	CountImages(ctx context.Context) (int64, error)

	// CreateComment inserts a comment bound to an image. The image is not
	// looked up first; implementations rely on the foreign key and return
	// ErrNotFound when it rejects the row.
	CreateComment(ctx context.Context, c NewComment) (Comment, error)

	// ExistingStorageKeys reports which of the given keys are referenced by an
	// image row. Keys absent from the returned set have no row.
	ExistingStorageKeys(ctx context.Context, keys []string) (map[string]bool, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error
}

// ObjectStorage defines the interface for the object store that holds image bytes.
// Implementations can use S3-compatible buckets or the local filesystem.
type ObjectStorage interface {
	// Put stores content under key with the given content type. size is the
	// content length in bytes, or -1 when unknown.
	//
	// Returns:
	//   - error: Any transport, permission or I/O error
	Put(ctx context.Context, key string, content io.Reader, size int64, contentType string) error

	// Delete removes the object under key.
	//
	// Returns:
	//   - error: ErrNotFound if the object doesn't exist, or other storage errors
	Delete(ctx context.Context, key string) error

	// List returns every object whose key starts with prefix.
	// It returns an empty slice (not nil) when nothing matches.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

type GalleryService struct {
	repo           ImageRepo
	storage        ObjectStorage
	cdnDomain      string
	keyPrefix      string
	maxPageSize    int
	cleanupTimeout time.Duration
	now            func() time.Time
}

// ServiceConfig holds configuration options for GalleryService.
type ServiceConfig struct {
	CDNDomain      string
	KeyPrefix      string        // Storage key prefix (default: DefaultKeyPrefix)
	MaxPageSize    int           // Upper bound for PageRequest.Limit, 0 means no bound
	CleanupTimeout time.Duration // Timeout for the compensating delete (default: 30s)
	Clock          func() time.Time
}

func NewGalleryService(repo ImageRepo, storage ObjectStorage, cfg ServiceConfig) (*GalleryService, error) {
	if repo == nil || storage == nil {
		return nil, errors.New("new gallery service: repo and storage are required")
	}
	if cfg.CDNDomain == "" {
		return nil, errors.New("new gallery service: cdn domain cannot be empty")
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	if keyPrefix != "" && !IsValidKey(strings.TrimSuffix(keyPrefix, "/")) {
		return nil, fmt.Errorf("new gallery service: invalid key prefix: %s", keyPrefix)
	}

	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &GalleryService{
		repo:           repo,
		storage:        storage,
		cdnDomain:      cfg.CDNDomain,
		keyPrefix:      keyPrefix,
		maxPageSize:    max(0, cfg.MaxPageSize),
		cleanupTimeout: cleanupTimeout,
		now:            clock,
	}, nil
}

// List returns one page of images, newest first, with pagination metadata.
// Pages past the end yield an empty image list, not an error.
func (s *GalleryService) List(ctx context.Context, req PageRequest) (ImagePage, error) {
	if err := ctx.Err(); err != nil {
		return ImagePage{}, fmt.Errorf("list images: %w", err)
	}

	req = req.Normalize(s.maxPageSize)

	var images []Image
	if offset, ok := req.Offset(); ok {
		var err error
		images, err = s.repo.ListImages(ctx, offset, req.Limit)
		if err != nil {
			return ImagePage{}, fmt.Errorf("list images: %w", err)
		}
	}

	total, err := s.repo.CountImages(ctx)
	if err != nil {
		return ImagePage{}, fmt.Errorf("list images: count: %w", err)
	}

	views := make([]ImageView, 0, len(images))
	for _, img := range images {
		views = append(views, s.view(img))
	}

	return newImagePage(req, views, total), nil
}

// Upload stores a new image and creates its metadata row.
//
// The method performs the following steps:
//  1. Generates a unique storage key from the clock, a random token and the filename
//  2. Writes content to object storage under that key
//  3. Creates the image row referencing the key
//  4. On row failure, deletes the stored object
//
// The compensating delete uses a background context with the configured
// cleanup timeout so it runs even when ctx is already cancelled. When the
// delete fails too, the object is left for Reconcile.
func (s *GalleryService) Upload(ctx context.Context, img UploadImage, content io.Reader) (ImageView, error) {
	if err := ctx.Err(); err != nil {
		return ImageView{}, fmt.Errorf("upload image: %w", err)
	}

	if content == nil {
		return ImageView{}, fmt.Errorf("upload image: %w: content cannot be nil", ErrInvalidInput)
	}

	now := s.now()

	key, err := NewStorageKey(s.keyPrefix, now, img.Filename)
	if err != nil {
		return ImageView{}, fmt.Errorf("upload image: %w", err)
	}

	title := img.Title
	if title == "" {
		title = DefaultTitle(now)
	}

	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if putErr := s.storage.Put(ctx, key, content, img.Size, contentType); putErr != nil {
		return ImageView{}, fmt.Errorf("upload image %s: put failed: %w", key, putErr)
	}
	slog.Info("object stored", "key", key, "content_type", contentType, "size", img.Size)

	image, createErr := s.repo.CreateImage(ctx, NewImage{Title: title, StorageKey: key})
	if createErr != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cancel()

		if delErr := s.storage.Delete(cleanupCtx, key); delErr != nil {
			slog.Warn("compensating delete failed, object left for reconcile", "key", key, "err", delErr)
			return ImageView{}, fmt.Errorf("upload image %s: create image failed (%w) and cleanup failed: %w", key, createErr, delErr)
		}
		return ImageView{}, fmt.Errorf("upload image %s: create image failed: %w", key, createErr)
	}

	return s.view(image), nil
}

// Get returns an image with its comments, newest first.
func (s *GalleryService) Get(ctx context.Context, id int64) (ImageDetail, error) {
	if err := ctx.Err(); err != nil {
		return ImageDetail{}, fmt.Errorf("get image: %w", err)
	}

	if id < 1 {
		return ImageDetail{}, fmt.Errorf("get image %d: %w", id, ErrNotFound)
	}

	image, comments, err := s.repo.GetImage(ctx, id)
	if err != nil {
		return ImageDetail{}, fmt.Errorf("get image %d: %w", id, err)
	}

	if comments == nil {
		comments = []Comment{}
	}

	return ImageDetail{ImageView: s.view(image), Comments: comments}, nil
}

// PostComment validates and stores a comment. The content is stored as
// given; only its trimmed form must be non-empty.
func (s *GalleryService) PostComment(ctx context.Context, c NewComment) (Comment, error) {
	if err := ctx.Err(); err != nil {
		return Comment{}, fmt.Errorf("post comment: %w", err)
	}

	verr := &ValidationError{}
	if c.ImageID < 1 {
		verr.Add("imageId", "must be a positive integer")
	}
	if strings.TrimSpace(c.Content) == "" {
		verr.Add("content", "cannot be empty")
	}
	if err := verr.OrNil(); err != nil {
		return Comment{}, fmt.Errorf("post comment: %w", err)
	}

	comment, err := s.repo.CreateComment(ctx, c)
	if err != nil {
		return Comment{}, fmt.Errorf("post comment on image %d: %w", c.ImageID, err)
	}

	return comment, nil
}

// Ping reports whether the metadata store is reachable.
func (s *GalleryService) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Reconcile removes stored objects that no image row references.
//
// Only objects under the upload key prefix that are older than q.MinAge are
// considered, so uploads still between their two steps are left alone.
// Keys are checked against the repo in batches of q.BatchSize (default 500).
// With q.DryRun set, orphans are reported but not deleted.
//
// An object that is already gone when deleted counts as deleted.
func (s *GalleryService) Reconcile(ctx context.Context, q ReconcileQuery) (ReconcileResult, error) {
	if err := ctx.Err(); err != nil {
		return ReconcileResult{}, fmt.Errorf("reconcile: %w", err)
	}

	batchSize := q.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	objects, err := s.storage.List(ctx, s.keyPrefix)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("reconcile: list objects: %w", err)
	}

	result := ReconcileResult{Scanned: len(objects), Orphaned: []string{}}

	cutoff := s.now().Add(-q.MinAge)
	candidates := make([]string, 0, len(objects))
	for _, obj := range objects {
		if obj.LastModified.After(cutoff) {
			continue
		}
		candidates = append(candidates, obj.Key)
	}

	for start := 0; start < len(candidates); start += batchSize {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("reconcile: %w", err)
		}

		batch := candidates[start:min(start+batchSize, len(candidates))]

		existing, err := s.repo.ExistingStorageKeys(ctx, batch)
		if err != nil {
			return result, fmt.Errorf("reconcile: check keys: %w", err)
		}

		for _, key := range batch {
			if !existing[key] {
				result.Orphaned = append(result.Orphaned, key)
			}
		}
	}

	if q.DryRun {
		return result, nil
	}

	for _, key := range result.Orphaned {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("reconcile: %w", err)
		}

		deleteErr := s.storage.Delete(ctx, key)
		// Ignore ErrNotFound - object may have been deleted already
		if deleteErr != nil && !errors.Is(deleteErr, ErrNotFound) {
			return result, fmt.Errorf("reconcile '%s': %w", key, deleteErr)
		}

		result.Deleted++
	}

	return result, nil
}

// CDNURL returns the public URL for a storage key.
func (s *GalleryService) CDNURL(key string) string {
	return CDNURL(s.cdnDomain, key)
}

func (s *GalleryService) view(img Image) ImageView {
	return ImageView{Image: img, CDNURL: s.CDNURL(img.StorageKey)}
}
