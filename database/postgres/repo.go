// Package postgres implements gallery.ImageRepo on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/gallery"
)

// foreignKeyViolation is the SQLSTATE for a rejected foreign key.
const foreignKeyViolation = "23503"

// listPrealloc bounds the capacity reserved for a listing; limit comes
// from the client.
const listPrealloc = 64

type Repo struct {
	pool   *pgxpool.Pool
	tables gallery.Tables
}

func NewRepo(pool *pgxpool.Pool, tables gallery.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{pool: pool, tables: tables}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repo) images() string {
	return pgx.Identifier{r.tables.Images}.Sanitize()
}

func (r *Repo) comments() string {
	return pgx.Identifier{r.tables.Comments}.Sanitize()
}

func (r *Repo) CreateImage(ctx context.Context, img gallery.NewImage) (gallery.Image, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (title, storage_key)
		VALUES ($1, $2)
		RETURNING id, title, storage_key, created_at
	`, r.images())

	var m gallery.Image
	err := r.pool.QueryRow(ctx, query, img.Title, img.StorageKey).Scan(
		&m.ID, &m.Title, &m.StorageKey, &m.CreatedAt,
	)
	if err != nil {
		return gallery.Image{}, fmt.Errorf("create image: %w", err)
	}

	return m, nil
}

func (r *Repo) GetImage(ctx context.Context, id int64) (gallery.Image, []gallery.Comment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return gallery.Image{}, nil, fmt.Errorf("get image: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	imageQuery := fmt.Sprintf(`
		SELECT id, title, storage_key, created_at
		FROM %s
		WHERE id = $1
	`, r.images())

	var m gallery.Image
	err = tx.QueryRow(ctx, imageQuery, id).Scan(&m.ID, &m.Title, &m.StorageKey, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return gallery.Image{}, nil, gallery.ErrNotFound
		}
		return gallery.Image{}, nil, fmt.Errorf("get image: %w", err)
	}

	commentsQuery := fmt.Sprintf(`
		SELECT id, content, image_id, created_at
		FROM %s
		WHERE image_id = $1
		ORDER BY created_at DESC, id DESC
	`, r.comments())

	rows, err := tx.Query(ctx, commentsQuery, id)
	if err != nil {
		return gallery.Image{}, nil, fmt.Errorf("get image: comments: %w", err)
	}

	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (gallery.Comment, error) {
		var c gallery.Comment
		err := row.Scan(&c.ID, &c.Content, &c.ImageID, &c.CreatedAt)
		return c, err
	})
	if err != nil {
		return gallery.Image{}, nil, fmt.Errorf("get image: scan comments: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return gallery.Image{}, nil, fmt.Errorf("get image: commit: %w", err)
	}

	if comments == nil {
		comments = []gallery.Comment{}
	}

	return m, comments, nil
}

func (r *Repo) ListImages(ctx context.Context, offset, limit int) ([]gallery.Image, error) {
	query := fmt.Sprintf(`
		SELECT id, title, storage_key, created_at
		FROM %s
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, r.images())

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	items := make([]gallery.Image, 0, min(max(limit, 0), listPrealloc))
	for rows.Next() {
		var m gallery.Image
		if err := rows.Scan(&m.ID, &m.Title, &m.StorageKey, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("list images: scan: %w", err)
		}
		items = append(items, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list images: rows: %w", err)
	}

	return items, nil
}

func (r *Repo) CountImages(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.images())).Scan(&n); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

func (r *Repo) CreateComment(ctx context.Context, c gallery.NewComment) (gallery.Comment, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (content, image_id)
		VALUES ($1, $2)
		RETURNING id, content, image_id, created_at
	`, r.comments())

	var m gallery.Comment
	err := r.pool.QueryRow(ctx, query, c.Content, c.ImageID).Scan(
		&m.ID, &m.Content, &m.ImageID, &m.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return gallery.Comment{}, fmt.Errorf("create comment: image %d: %w", c.ImageID, gallery.ErrNotFound)
		}
		return gallery.Comment{}, fmt.Errorf("create comment: %w", err)
	}

	return m, nil
}

func (r *Repo) ExistingStorageKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return existing, nil
	}

	query := fmt.Sprintf(`
		SELECT storage_key
		FROM %s
		WHERE storage_key = ANY($1)
	`, r.images())

	rows, err := r.pool.Query(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("existing storage keys: %w", err)
	}
	defer rows.Close()

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
