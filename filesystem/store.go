// Package filesystem provides a local directory backend for gallery objects.
// Writes are atomic using temp files, and keys map to slash-separated paths
// under the root.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sagarc03/gallery"
)

const tmpPrefix = ".t"

// Store provides file system storage operations.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Put atomically writes content under key using a temp file and rename.
// It creates intermediate directories as needed. When size is not negative the
// number of bytes read must match it. The content type is not persisted; the
// CDN in front of the directory derives it from the extension.
func (s *Store) Put(ctx context.Context, key string, content io.Reader, size int64, _ string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if !gallery.IsValidKey(key) {
		return fmt.Errorf("put %s: %w: invalid key", key, gallery.ErrInvalidInput)
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	written, err := io.Copy(t, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return fmt.Errorf("could not copy file contents: %w", err)
	}

	if size >= 0 && written != size {
		return fmt.Errorf("put %s: wrote %d bytes, expected %d", key, written, size)
	}

	if err := t.Sync(); err != nil {
		return fmt.Errorf("could not sync written file: %w", err)
	}

	destDir := path.Dir(key)
	if destDir != "." {
		if err := s.root.MkdirAll(filepath.FromSlash(destDir), 0o755); err != nil {
			return fmt.Errorf("could not create intermediate directories: %w", err)
		}
	}

	if renameErr := s.root.Rename(tmpFile, filepath.FromSlash(key)); renameErr != nil {
		return fmt.Errorf("failed to rename file: %w", renameErr)
	}

	success = true
	return nil
}

// Delete removes a file. Returns gallery.ErrNotFound if the file does not exist.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !gallery.IsValidKey(key) {
		return fmt.Errorf("delete %s: %w: invalid key", key, gallery.ErrInvalidInput)
	}

	err := s.root.Remove(filepath.FromSlash(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return gallery.ErrNotFound
		}
		return fmt.Errorf("could not delete file: %w", err)
	}
	return nil
}

// List walks the directory holding prefix and returns every file whose key
// starts with prefix. Temp files from in-flight writes are skipped.
func (s *Store) List(ctx context.Context, prefix string) ([]gallery.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := "."
	if i := strings.LastIndex(prefix, "/"); i > 0 {
		start = prefix[:i]
	}

	entries := []gallery.ObjectInfo{}

	err := s.walkDir(ctx, start, prefix, &entries)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return entries, nil
}

func (s *Store) walkDir(ctx context.Context, dir, prefix string, entries *[]gallery.ObjectInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirEntries, err := fs.ReadDir(s.root.FS(), dir)
	if err != nil {
		return err
	}

	for _, entry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := path.Join(dir, entry.Name())

		if entry.IsDir() {
			if err := s.walkDir(ctx, key, prefix, entries); err != nil {
				return err
			}
			continue
		}

		if strings.HasPrefix(entry.Name(), tmpPrefix) || !strings.HasPrefix(key, prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("walk dir: %w", err)
		}

		*entries = append(*entries, gallery.ObjectInfo{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
	}

	return nil
}

func tmpFileName() string {
	return tmpPrefix + uuid.New().String()
}
