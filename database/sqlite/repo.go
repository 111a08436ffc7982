// Package sqlite implements gallery.ImageRepo on SQLite using modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sagarc03/gallery"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// listPrealloc bounds the capacity reserved for a listing; limit comes
// from the client.
const listPrealloc = 64

type repo struct {
	db     *sql.DB
	tables gallery.Tables
	now    func() time.Time
}

// NewRepo builds a repo over an already migrated database.
func NewRepo(db *sql.DB, tables gallery.Tables) (gallery.ImageRepo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}
	return &repo{db: db, tables: tables}, nil
}

func (r *repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *repo) timestamp() string {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	return formatTime(now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// rows written by hand may use RFC 3339
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (gallery.Image, error) {
	var (
		m         gallery.Image
		createdAt string
	)
	if err := s.Scan(&m.ID, &m.Title, &m.StorageKey, &createdAt); err != nil {
		return gallery.Image{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return gallery.Image{}, fmt.Errorf("parse created_at: %w", err)
	}
	m.CreatedAt = t
	return m, nil
}

func scanComment(s scanner) (gallery.Comment, error) {
	var (
		c         gallery.Comment
		createdAt string
	)
	if err := s.Scan(&c.ID, &c.Content, &c.ImageID, &createdAt); err != nil {
		return gallery.Comment{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return gallery.Comment{}, fmt.Errorf("parse created_at: %w", err)
	}
	c.CreatedAt = t
	return c, nil
}

func (r *repo) CreateImage(ctx context.Context, img gallery.NewImage) (gallery.Image, error) {
	//nolint:gosec // G201: table name is validated
	query := fmt.Sprintf(`
		INSERT INTO %s (title, storage_key, created_at)
		VALUES (?, ?, ?)
		RETURNING id, title, storage_key, created_at
	`, quoteIdentifier(r.tables.Images))

	m, err := scanImage(r.db.QueryRowContext(ctx, query, img.Title, img.StorageKey, r.timestamp()))
	if err != nil {
		return gallery.Image{}, fmt.Errorf("create image: %w", err)
	}

	return m, nil
}

func (r *repo) GetImage(ctx context.Context, id int64) (gallery.Image, []gallery.Comment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return gallery.Image{}, nil, fmt.Errorf("get image: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	//nolint:gosec // G201: table name is validated
	imageQuery := fmt.Sprintf(`
		SELECT id, title, storage_key, created_at
		FROM %s
		WHERE id = ?
	`, quoteIdentifier(r.tables.Images))

	m, err := scanImage(tx.QueryRowContext(ctx, imageQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return gallery.Image{}, nil, gallery.ErrNotFound
		}
		return gallery.Image{}, nil, fmt.Errorf("get image: %w", err)
	}

	//nolint:gosec // G201: table name is validated
	commentsQuery := fmt.Sprintf(`
		SELECT id, content, image_id, created_at
		FROM %s
		WHERE image_id = ?
		ORDER BY created_at DESC, id DESC
	`, quoteIdentifier(r.tables.Comments))

	rows, err := tx.QueryContext(ctx, commentsQuery, id)
	if err != nil {
		return gallery.Image{}, nil, fmt.Errorf("get image: comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	comments := []gallery.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return gallery.Image{}, nil, fmt.Errorf("get image: scan comment: %w", err)
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return gallery.Image{}, nil, fmt.Errorf("get image: rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return gallery.Image{}, nil, fmt.Errorf("get image: commit: %w", err)
	}

	return m, comments, nil
}

func (r *repo) ListImages(ctx context.Context, offset, limit int) ([]gallery.Image, error) {
	//nolint:gosec // G201: table name is validated
	query := fmt.Sprintf(`
		SELECT id, title, storage_key, created_at
		FROM %s
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, quoteIdentifier(r.tables.Images))

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]gallery.Image, 0, min(max(limit, 0), listPrealloc))
	for rows.Next() {
		m, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("list images: scan: %w", err)
		}
		items = append(items, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list images: rows: %w", err)
	}

	return items, nil
}

func (r *repo) CountImages(ctx context.Context) (int64, error) {
	//nolint:gosec // G201: table name is validated
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdentifier(r.tables.Images))

	var n int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

func (r *repo) CreateComment(ctx context.Context, c gallery.NewComment) (gallery.Comment, error) {
	//nolint:gosec // G201: table name is validated
	query := fmt.Sprintf(`
		INSERT INTO %s (content, image_id, created_at)
		VALUES (?, ?, ?)
		RETURNING id, content, image_id, created_at
	`, quoteIdentifier(r.tables.Comments))

	m, err := scanComment(r.db.QueryRowContext(ctx, query, c.Content, c.ImageID, r.timestamp()))
	if err != nil {
		if isForeignKeyViolation(err) {
			return gallery.Comment{}, fmt.Errorf("create comment: image %d: %w", c.ImageID, gallery.ErrNotFound)
		}
		return gallery.Comment{}, fmt.Errorf("create comment: %w", err)
	}

	return m, nil
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

func (r *repo) ExistingStorageKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return existing, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	//nolint:gosec // G201: table name is validated
	query := fmt.Sprintf(`
		SELECT storage_key
		FROM %s
		WHERE storage_key IN (%s)
	`, quoteIdentifier(r.tables.Images), placeholders)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("existing storage keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("existing storage keys: scan: %w", err)
		}
		existing[key] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("existing storage keys: rows: %w", err)
	}

	return existing, nil
}
