package images

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/bunx"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/migrations"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/repository"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/validation"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func newTestService(t *testing.T) (*Service, *repository.BunLikeRepository) {
	t.Helper()
	db, err := bunx.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })
	_, err = migrations.Apply(context.Background(), db)
	require.NoError(t, err)

	v, err := validation.NewSchemaValidator(4)
	require.NoError(t, err)
	likes := repository.NewBunLikeRepository(db)
	return NewService(repository.NewBunImageRepository(db), likes, v), likes
}

func TestService_CreateAndGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Name: " Sunset ", Data: pngHeader, Tags: `["sky","sea"]`})
	require.NoError(t, err)
	assert.Equal(t, "Sunset", created.Name)
	assert.Equal(t, "image/png", created.ContentType)
	assert.Equal(t, []string{"sky", "sea"}, created.Tags)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Zero(t, got.LikeCount)

	data, err := svc.Data(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data.Data)
}

func TestService_CreateRejects(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := map[string]CreateInput{
		"no name":   {Data: pngHeader},
		"no data":   {Name: "x"},
		"too large": {Name: "x", Data: make([]byte, MaxImageBytes+1)},
		"not image": {Name: "x", Data: []byte("plain text, not an image")},
		"bad tags":  {Name: "x", Data: pngHeader, Tags: `[1]`},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestService_ListMarksLikedImages(t *testing.T) {
	svc, likes := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{Name: "a", Data: pngHeader, Tags: "x"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "b", Data: pngHeader})
	require.NoError(t, err)

	_, _, err = likes.Toggle(ctx, a.ID, "anon_viewer")
	require.NoError(t, err)

	page, err := svc.List(ctx, repository.ImageFilter{}, "anon_viewer")
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, repository.DefaultImagePageSize, page.Limit)
	for _, img := range page.Images {
		assert.Equal(t, img.ID == a.ID, img.LikedByCurrentUser, img.Name)
		if img.ID == a.ID {
			assert.EqualValues(t, 1, img.LikeCount)
		}
	}

	page, err = svc.List(ctx, repository.ImageFilter{Tag: "x"}, "")
	require.NoError(t, err)
	require.Len(t, page.Images, 1)
	assert.False(t, page.Images[0].LikedByCurrentUser)
}

func TestService_InvalidIDs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "../x")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = svc.Data(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, svc.Delete(ctx, "a b"), ErrInvalidID)

	assert.ErrorIs(t, svc.Delete(ctx, "missing"), repository.ErrNotFound)
	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestService_Update(t *testing.T) {
	svc, likes := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Name: "before", Data: pngHeader, Tags: "old"})
	require.NoError(t, err)
	_, _, err = likes.Toggle(ctx, created.ID, "anon_viewer")
	require.NoError(t, err)

	// Name only: bytes and tags stay.
	updated, err := svc.Update(ctx, created.ID, UpdateInput{Name: " after "})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Name)
	assert.Equal(t, []string{"old"}, updated.Tags)
	assert.EqualValues(t, 1, updated.LikeCount)

	gif := []byte("GIF89a\x01\x00\x01\x00")
	updated, err = svc.Update(ctx, created.ID, UpdateInput{Name: "after", Data: gif, Tags: "new,tags"})
	require.NoError(t, err)
	assert.Equal(t, "image/gif", updated.ContentType)
	assert.Equal(t, []string{"new", "tags"}, updated.Tags)

	data, err := svc.Data(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, gif, data.Data)
}

func TestService_UpdateRejects(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Name: "x", Data: pngHeader})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "bad!id", UpdateInput{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = svc.Update(ctx, "missing", UpdateInput{Name: "x"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	cases := map[string]UpdateInput{
		"no name":   {},
		"not image": {Name: "x", Data: []byte("plain text, not an image")},
		"too large": {Name: "x", Data: make([]byte, MaxImageBytes+1)},
		"bad tags":  {Name: "x", Tags: `[1]`},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Update(ctx, created.ID, in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
