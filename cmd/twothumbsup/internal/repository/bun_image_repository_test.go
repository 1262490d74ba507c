package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBunImageRepository_GetAndMeta(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunImageRepository(db)
	ctx := context.Background()
	seedImage(t, db, "img-1", "sunset", "beach")

	full, err := repo.GetByID(ctx, "img-1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, full.Data)
	assert.Equal(t, []string{"sunset", "beach"}, full.Tags)
	assert.Zero(t, full.LikeCount)

	meta, err := repo.GetMeta(ctx, "img-1")
	require.NoError(t, err)
	assert.Nil(t, meta.Data)
	assert.Equal(t, "image img-1", meta.Name)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBunImageRepository_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunImageRepository(db)
	ctx := context.Background()
	seedImage(t, db, "sun-1", "sunset")
	seedImage(t, db, "sun-2", "sunset", "beach")
	seedImage(t, db, "cat-1", "cats")

	all, total, err := repo.List(ctx, ImageFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)
	for _, img := range all {
		assert.Nil(t, img.Data)
	}

	tagged, total, err := repo.List(ctx, ImageFilter{Tag: "sunset"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, tagged, 2)

	searched, total, err := repo.List(ctx, ImageFilter{Search: "CAT"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, searched, 1)
	assert.Equal(t, "cat-1", searched[0].ID)

	page, total, err := repo.List(ctx, ImageFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 1)
}

func TestBunImageRepository_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunImageRepository(db)
	ctx := context.Background()
	seedImage(t, db, "img-1", "sunset")

	img, err := repo.GetByID(ctx, "img-1")
	require.NoError(t, err)
	img.Name = "renamed"
	img.ContentType = "image/gif"
	img.Data = []byte("GIF89a")
	img.Tags = nil
	require.NoError(t, repo.Update(ctx, img))

	got, err := repo.GetByID(ctx, "img-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, "image/gif", got.ContentType)
	assert.Equal(t, []byte("GIF89a"), got.Data)
	assert.Empty(t, got.Tags)

	img.ID = "missing"
	assert.ErrorIs(t, repo.Update(ctx, img), ErrNotFound)
}
