package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/bunx"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/models"
)

// BunImageRepository implements ImageRepository using Bun ORM
type BunImageRepository struct {
	db *bun.DB
}

// NewBunImageRepository creates a new Bun-based image repository
func NewBunImageRepository(db *bun.DB) *BunImageRepository {
	return &BunImageRepository{db: db}
}

// Create inserts an image. like_count always starts at zero.
func (r *BunImageRepository) Create(ctx context.Context, image *models.Image) error {
	if image.ID == "" {
		image.ID = bunx.NewUUIDv7()
	}
	if image.Tags == nil {
		image.Tags = []string{}
	}
	image.LikeCount = 0
	_, err := r.db.NewInsert().
		Model(image).
		Exec(ctx)
	if err != nil {
		if bunx.IsUniqueViolation(err) {
			return fmt.Errorf("create image %s: %w", image.ID, ErrConflict)
		}
		return fmt.Errorf("create image: %w", err)
	}
	return nil
}

// GetByID retrieves an image including its data
func (r *BunImageRepository) GetByID(ctx context.Context, id string) (*models.Image, error) {
	image := new(models.Image)
	err := r.db.NewSelect().
		Model(image).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, imageLookupError(id, err)
	}
	return image, nil
}

// GetMeta retrieves an image without loading its data
func (r *BunImageRepository) GetMeta(ctx context.Context, id string) (*models.Image, error) {
	image := new(models.Image)
	err := r.db.NewSelect().
		Model(image).
		ExcludeColumn("data").
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, imageLookupError(id, err)
	}
	return image, nil
}

// List returns a page of images (without data) and the total match count.
func (r *BunImageRepository) List(ctx context.Context, filter ImageFilter) ([]models.Image, int, error) {
	filter = filter.Normalize()

	var images []models.Image
	q := r.db.NewSelect().
		Model(&images).
		ExcludeColumn("data").
		OrderExpr("img.created_at DESC, img.id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset)

	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where("LOWER(img.name) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		if r.db.Dialect().Name() == dialect.PG {
			q = q.Where("img.tags @> jsonb_build_array(?::text)", tag)
		} else {
			q = q.Where("EXISTS (SELECT 1 FROM json_each(img.tags) WHERE json_each.value = ?)", tag)
		}
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list images: %w", err)
	}
	return images, total, nil
}

// Update writes the mutable columns of image back by primary key.
func (r *BunImageRepository) Update(ctx context.Context, image *models.Image) error {
	if image.Tags == nil {
		image.Tags = []string{}
	}
	res, err := r.db.NewUpdate().
		Model(image).
		Column("name", "content_type", "data", "tags").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("image %s: %w", image.ID, ErrNotFound)
	}
	return nil
}

// Delete removes an image; its likes go with it through ON DELETE CASCADE.
func (r *BunImageRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().
		Model((*models.Image)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("image %s: %w", id, ErrNotFound)
	}
	return nil
}

func imageLookupError(id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("image %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("get image: %w", err)
}
