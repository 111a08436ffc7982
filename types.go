package gallery

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Image is a stored image's metadata row.
type Image struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	StorageKey string    `json:"imageLink"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Comment belongs to exactly one image.
type Comment struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	ImageID   int64     `json:"imageId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ImageView is an image augmented with its public CDN URL.
type ImageView struct {
	Image
	CDNURL string `json:"cdn_url"`
}

// ImageDetail is an image with its CDN URL and all comments, newest first.
type ImageDetail struct {
	ImageView
	Comments []Comment `json:"comments"`
}

type NewImage struct {
	Title      string
	StorageKey string
}

type NewComment struct {
	ImageID int64
	Content string
}

// UploadImage describes an incoming file. Title may be empty.
type UploadImage struct {
	Title       string
	Filename    string
	ContentType string
	Size        int64
}

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// PageRequest is a 1-based page request. Non-positive values fall back to
// DefaultPage and DefaultLimit.
type PageRequest struct {
	Page  int
	Limit int
}

// ImagePage is one page of the newest-first image listing.
type ImagePage struct {
	Images          []ImageView `json:"images"`
	CurrentPage     int         `json:"currentPage"`
	TotalPages      int         `json:"totalPages"`
	HasPreviousPage bool        `json:"hasPreviousPage"`
	HasNextPage     bool        `json:"hasNextPage"`
	PrevPage        int         `json:"prevPage"`
	NextPage        int         `json:"nextPage"`
	Limit           int         `json:"limit"`
	TotalItems      int64       `json:"totalItems"`
}

type ReconcileQuery struct {
	// MinAge protects uploads that are still between their two steps.
	MinAge    time.Duration
	DryRun    bool
	BatchSize int
}

type ReconcileResult struct {
	Scanned  int      `json:"scanned"`
	Orphaned []string `json:"orphaned"`
	Deleted  int      `json:"deleted"`
}

// Tables holds configurable table names for metadata storage.
// This allows several galleries to share one database.
type Tables struct {
	Images   string `mapstructure:"images"`
	Comments string `mapstructure:"comments"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set, valid and distinct.
func (t Tables) Validate() error {
	names := []struct {
		kind, name string
	}{
		{"images", t.Images},
		{"comments", t.Comments},
	}

	for _, n := range names {
		if n.name == "" {
			return fmt.Errorf("validate tables: %s table name cannot be empty", n.kind)
		}
		if !IsValidTableName(n.name) {
			return fmt.Errorf("validate tables: invalid %s table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", n.kind, n.name)
		}
	}

	if t.Images == t.Comments {
		return errors.New("validate tables: images and comments tables must differ")
	}

	return nil
}

// DefaultTables returns the table names used when none are configured.
func DefaultTables() Tables {
	return Tables{Images: "images", Comments: "comments"}
}
