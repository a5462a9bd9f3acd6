package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memeshare/api/internal/models"
)

// imageStore is the method set both repositories share.
type imageStore interface {
	Insert(ctx context.Context, image models.NewImage) (models.Image, error)
	FindByID(ctx context.Context, id int64) (*models.Image, error)
	FindByHash(ctx context.Context, hash string) (*models.Image, error)
	FindByFileName(ctx context.Context, name string) (*models.Image, error)
	FindRandomChecked(ctx context.Context, excludeID int64) (*models.Image, error)
	ListChecked(ctx context.Context, offset, limit int) ([]models.Image, error)
	ListUnchecked(ctx context.Context, offset, limit int) ([]models.Image, error)
	ListAll(ctx context.Context, offset, limit int) ([]models.Image, error)
	CountByChecked(ctx context.Context, checked bool) (int, error)
	SetChecked(ctx context.Context, id int64, checked bool) (*models.Image, error)
	SetFilePath(ctx context.Context, id int64, path string) (*models.Image, error)
	IncrementLikes(ctx context.Context, id int64) (*models.Image, error)
	IncrementDislikes(ctx context.Context, id int64) (*models.Image, error)
	DecrementLikes(ctx context.Context, id int64) (*models.Image, error)
	DecrementDislikes(ctx context.Context, id int64) (*models.Image, error)
	Delete(ctx context.Context, id int64) (bool, error)
	FilePathInUse(ctx context.Context, path string) (bool, error)
}

func newImage(n int) models.NewImage {
	return models.NewImage{
		FileName:  fmt.Sprintf("meme_%d.png", n),
		FileHash:  fmt.Sprintf("%032x", n),
		FileSize:  int64(100 + n),
		MimeType:  "image/png",
		Width:     10,
		Height:    20,
		IsChecked: false,
	}
}

func runStoreContract(t *testing.T, newStore func(t *testing.T) imageStore) {
	ctx := context.Background()

	t.Run("insert and lookups", func(t *testing.T) {
		store := newStore(t)

		created, err := store.Insert(ctx, newImage(1))
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.False(t, created.IsChecked)
		assert.Zero(t, created.Likes)
		assert.Zero(t, created.Dislikes)
		assert.False(t, created.UploadTime.IsZero())

		byID, err := store.FindByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, created.FileHash, byID.FileHash)

		byHash, err := store.FindByHash(ctx, created.FileHash)
		require.NoError(t, err)
		require.NotNil(t, byHash)
		assert.Equal(t, created.ID, byHash.ID)

		byName, err := store.FindByFileName(ctx, created.FileName)
		require.NoError(t, err)
		require.NotNil(t, byName)
		assert.Equal(t, created.ID, byName.ID)

		missing, err := store.FindByID(ctx, created.ID+1000)
		require.NoError(t, err)
		assert.Nil(t, missing)

		missing, err = store.FindByHash(ctx, "ffffffffffffffffffffffffffffffff")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("insert conflicts", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Insert(ctx, newImage(1))
		require.NoError(t, err)

		sameHash := newImage(2)
		sameHash.FileHash = newImage(1).FileHash
		_, err = store.Insert(ctx, sameHash)
		assert.ErrorIs(t, err, ErrConflict)

		sameName := newImage(3)
		sameName.FileName = newImage(1).FileName
		_, err = store.Insert(ctx, sameName)
		assert.ErrorIs(t, err, ErrConflict)

		total, err := store.ListAll(ctx, 0, 10)
		require.NoError(t, err)
		assert.Len(t, total, 1)
	})

	t.Run("counters clamp at zero", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Insert(ctx, newImage(1))
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err := store.IncrementLikes(ctx, created.ID)
			require.NoError(t, err)
		}
		updated, err := store.IncrementDislikes(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, updated.Likes)
		assert.Equal(t, 1, updated.Dislikes)

		for i := 0; i < 5; i++ {
			updated, err = store.DecrementLikes(ctx, created.ID)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, updated.Likes, 0)
			updated, err = store.DecrementDislikes(ctx, created.ID)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, updated.Dislikes, 0)
		}
		assert.Equal(t, 0, updated.Likes)
		assert.Equal(t, 0, updated.Dislikes)

		missing, err := store.IncrementLikes(ctx, created.ID+1000)
		require.NoError(t, err)
		assert.Nil(t, missing)
		missing, err = store.DecrementDislikes(ctx, created.ID+1000)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("checked state and listings", func(t *testing.T) {
		store := newStore(t)
		var ids []int64
		for i := 1; i <= 5; i++ {
			created, err := store.Insert(ctx, newImage(i))
			require.NoError(t, err)
			ids = append(ids, created.ID)
		}

		for _, id := range ids[:3] {
			updated, err := store.SetChecked(ctx, id, true)
			require.NoError(t, err)
			require.NotNil(t, updated)
			assert.True(t, updated.IsChecked)
		}

		missing, err := store.SetChecked(ctx, ids[4]+1000, true)
		require.NoError(t, err)
		assert.Nil(t, missing)

		checked, err := store.ListChecked(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, checked, 3)
		assert.Equal(t, ids[0], checked[0].ID)
		assert.Equal(t, ids[2], checked[2].ID)

		page, err := store.ListChecked(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, ids[1], page[0].ID)

		unchecked, err := store.ListUnchecked(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, unchecked, 2)
		assert.Equal(t, ids[3], unchecked[0].ID)

		all, err := store.ListAll(ctx, 0, 10)
		require.NoError(t, err)
		assert.Len(t, all, 5)

		nChecked, err := store.CountByChecked(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, 3, nChecked)
		nUnchecked, err := store.CountByChecked(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 2, nUnchecked)

		back, err := store.SetChecked(ctx, ids[0], false)
		require.NoError(t, err)
		assert.False(t, back.IsChecked)
	})

	t.Run("random respects exclusion", func(t *testing.T) {
		store := newStore(t)

		none, err := store.FindRandomChecked(ctx, 0)
		require.NoError(t, err)
		assert.Nil(t, none)

		first, err := store.Insert(ctx, newImage(1))
		require.NoError(t, err)
		second, err := store.Insert(ctx, newImage(2))
		require.NoError(t, err)
		_, err = store.Insert(ctx, newImage(3))
		require.NoError(t, err)

		_, err = store.SetChecked(ctx, first.ID, true)
		require.NoError(t, err)

		only, err := store.FindRandomChecked(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, only)
		assert.Equal(t, first.ID, only.ID, "sole checked image is returned even when excluded")

		_, err = store.SetChecked(ctx, second.ID, true)
		require.NoError(t, err)

		for i := 0; i < 50; i++ {
			got, err := store.FindRandomChecked(ctx, first.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, second.ID, got.ID)
		}
	})

	t.Run("delete and file paths", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Insert(ctx, newImage(1))
		require.NoError(t, err)

		withPath, err := store.SetFilePath(ctx, created.ID, "images/unchecked/meme_1.png")
		require.NoError(t, err)
		assert.Equal(t, "images/unchecked/meme_1.png", withPath.FilePath)

		inUse, err := store.FilePathInUse(ctx, "images/unchecked/meme_1.png")
		require.NoError(t, err)
		assert.True(t, inUse)

		removed, err := store.Delete(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = store.Delete(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, removed)

		gone, err := store.FindByHash(ctx, created.FileHash)
		require.NoError(t, err)
		assert.Nil(t, gone)
		gone, err = store.FindByFileName(ctx, created.FileName)
		require.NoError(t, err)
		assert.Nil(t, gone)

		inUse, err = store.FilePathInUse(ctx, "images/unchecked/meme_1.png")
		require.NoError(t, err)
		assert.False(t, inUse)

		again, err := store.Insert(ctx, newImage(1))
		require.NoError(t, err)
		assert.NotEqual(t, created.ID, again.ID)
	})
}
