// Package repotest holds the behaviour every gallery.ImageRepo backend must share.
package repotest

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/sagarc03/gallery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewRepoFunc returns an empty, migrated repo private to the calling test.
type NewRepoFunc func(t *testing.T) gallery.ImageRepo

// Run exercises repo behaviour shared by all backends.
func Run(t *testing.T, newRepo NewRepoFunc) {
	t.Run("Ping", func(t *testing.T) { testPing(t, newRepo) })
	t.Run("CreateImage", func(t *testing.T) { testCreateImage(t, newRepo) })
	t.Run("GetImage", func(t *testing.T) { testGetImage(t, newRepo) })
	t.Run("ListImages", func(t *testing.T) { testListImages(t, newRepo) })
	t.Run("CountImages", func(t *testing.T) { testCountImages(t, newRepo) })
	t.Run("CreateComment", func(t *testing.T) { testCreateComment(t, newRepo) })
	t.Run("ExistingStorageKeys", func(t *testing.T) { testExistingStorageKeys(t, newRepo) })
}

func createImages(t *testing.T, repo gallery.ImageRepo, n int) []gallery.Image {
	t.Helper()

	images := make([]gallery.Image, 0, n)
	for i := range n {
		img, err := repo.CreateImage(context.Background(), gallery.NewImage{
			Title:      fmt.Sprintf("image %d", i),
			StorageKey: fmt.Sprintf("user-upload/%d-image-%d.png", 1714564800000+i, i),
		})
		require.NoError(t, err, "create image %d", i)
		images = append(images, img)
	}
	return images
}

func testPing(t *testing.T, newRepo NewRepoFunc) {
	repo := newRepo(t)
	assert.NoError(t, repo.Ping(context.Background()))
}

func testCreateImage(t *testing.T, newRepo NewRepoFunc) {
	ctx := context.Background()

	t.Run("assigns id and timestamp", func(t *testing.T) {
		repo := newRepo(t)

		img, err := repo.CreateImage(ctx, gallery.NewImage{Title: "Sunset", StorageKey: "user-upload/1-sunset.jpg"})
		require.NoError(t, err)

		assert.Positive(t, img.ID)
		assert.Equal(t, "Sunset", img.Title)
		assert.Equal(t, "user-upload/1-sunset.jpg", img.StorageKey)
		assert.False(t, img.CreatedAt.IsZero())
	})

	t.Run("ids increase", func(t *testing.T) {
		repo := newRepo(t)
		images := createImages(t, repo, 3)

		assert.Less(t, images[0].ID, images[1].ID)
		assert.Less(t, images[1].ID, images[2].ID)
	})

	t.Run("duplicate storage key is rejected", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.CreateImage(ctx, gallery.NewImage{Title: "a", StorageKey: "user-upload/dup.png"})
		require.NoError(t, err)

		_, err = repo.CreateImage(ctx, gallery.NewImage{Title: "b", StorageKey: "user-upload/dup.png"})
		assert.Error(t, err)
	})
}

func testGetImage(t *testing.T, newRepo NewRepoFunc) {
	ctx := context.Background()

	t.Run("missing image", func(t *testing.T) {
		repo := newRepo(t)

		_, _, err := repo.GetImage(ctx, 999)
		assert.ErrorIs(t, err, gallery.ErrNotFound)
	})

	t.Run("no comments is an empty slice", func(t *testing.T) {
		repo := newRepo(t)
		created := createImages(t, repo, 1)[0]

		img, comments, err := repo.GetImage(ctx, created.ID)
		require.NoError(t, err)

		assert.Equal(t, created.ID, img.ID)
		assert.Equal(t, created.Title, img.Title)
		assert.Equal(t, created.StorageKey, img.StorageKey)
		assert.True(t, created.CreatedAt.Equal(img.CreatedAt), "created_at round trip")
		assert.NotNil(t, comments)
		assert.Empty(t, comments)
	})

	t.Run("comments newest first and scoped to image", func(t *testing.T) {
		repo := newRepo(t)
		images := createImages(t, repo, 2)

		for _, content := range []string{"first", "second", "third"} {
			_, err := repo.CreateComment(ctx, gallery.NewComment{ImageID: images[0].ID, Content: content})
			require.NoError(t, err)
		}
		_, err := repo.CreateComment(ctx, gallery.NewComment{ImageID: images[1].ID, Content: "elsewhere"})
		require.NoError(t, err)

		_, comments, err := repo.GetImage(ctx, images[0].ID)
		require.NoError(t, err)

		require.Len(t, comments, 3)
		assert.Equal(t, "third", comments[0].Content)
		assert.Equal(t, "second", comments[1].Content)
		assert.Equal(t, "first", comments[2].Content)
		for _, c := range comments {
			assert.Equal(t, images[0].ID, c.ImageID)
		}
	})
}

func testListImages(t *testing.T, newRepo NewRepoFunc) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		repo := newRepo(t)

		items, err := repo.ListImages(ctx, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("newest first", func(t *testing.T) {
		repo := newRepo(t)
		images := createImages(t, repo, 3)

		items, err := repo.ListImages(ctx, 0, 10)
		require.NoError(t, err)

		require.Len(t, items, 3)
		assert.Equal(t, images[2].ID, items[0].ID)
		assert.Equal(t, images[1].ID, items[1].ID)
		assert.Equal(t, images[0].ID, items[2].ID)
	})

	t.Run("offset and limit", func(t *testing.T) {
		repo := newRepo(t)
		images := createImages(t, repo, 5)

		items, err := repo.ListImages(ctx, 2, 2)
		require.NoError(t, err)

		require.Len(t, items, 2)
		assert.Equal(t, images[2].ID, items[0].ID)
		assert.Equal(t, images[1].ID, items[1].ID)
	})

	t.Run("offset past end", func(t *testing.T) {
		repo := newRepo(t)
		createImages(t, repo, 2)

		items, err := repo.ListImages(ctx, 10, 5)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("huge limit", func(t *testing.T) {
		repo := newRepo(t)
		createImages(t, repo, 3)

		items, err := repo.ListImages(ctx, 0, math.MaxInt)
		require.NoError(t, err)
		assert.Len(t, items, 3)

		items, err = repo.ListImages(ctx, 1, math.MaxInt/2)
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("huge offset", func(t *testing.T) {
		repo := newRepo(t)
		createImages(t, repo, 3)

		items, err := repo.ListImages(ctx, math.MaxInt-10, 10)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func testCountImages(t *testing.T, newRepo NewRepoFunc) {
	ctx := context.Background()
	repo := newRepo(t)

	n, err := repo.CountImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	createImages(t, repo, 4)

	n, err = repo.CountImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func testCreateComment(t *testing.T, newRepo NewRepoFunc) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := newRepo(t)
		img := createImages(t, repo, 1)[0]

		c, err := repo.CreateComment(ctx, gallery.NewComment{ImageID: img.ID, Content: "Nice shot"})
		require.NoError(t, err)

		assert.Positive(t, c.ID)
		assert.Equal(t, "Nice shot", c.Content)
		assert.Equal(t, img.ID, c.ImageID)
		assert.False(t, c.CreatedAt.IsZero())
	})

	t.Run("missing image", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.CreateComment(ctx, gallery.NewComment{ImageID: 12345, Content: "orphan"})
		assert.ErrorIs(t, err, gallery.ErrNotFound)

		n, err := repo.CountImages(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})
}

func testExistingStorageKeys(t *testing.T, newRepo NewRepoFunc) {
	ctx := context.Background()

	t.Run("empty input", func(t *testing.T) {
		repo := newRepo(t)

		existing, err := repo.ExistingStorageKeys(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, existing)
	})

	t.Run("reports only known keys", func(t *testing.T) {
		repo := newRepo(t)
		images := createImages(t, repo, 2)

		existing, err := repo.ExistingStorageKeys(ctx, []string{
			images[0].StorageKey,
			"user-upload/orphan.png",
			images[1].StorageKey,
		})
		require.NoError(t, err)

		assert.Equal(t, map[string]bool{
			images[0].StorageKey: true,
			images[1].StorageKey: true,
		}, existing)
	})
}
