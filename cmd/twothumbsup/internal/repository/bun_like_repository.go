package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/models"
)

// BunLikeRepository implements LikeRepository using Bun ORM
type BunLikeRepository struct {
	db *bun.DB
}

// NewBunLikeRepository creates a new Bun-based like repository
func NewBunLikeRepository(db *bun.DB) *BunLikeRepository {
	return &BunLikeRepository{db: db}
}

// Toggle flips membership and adjusts like_count in one transaction.
//
// The no-op UPDATE takes the image row lock first, so concurrent toggles on
// the same image serialize on PostgreSQL; SQLite serializes writers anyway.
// Counter changes are conditioned on the membership row actually being
// deleted or inserted, which keeps like_count equal to the set size.
func (r *BunLikeRepository) Toggle(ctx context.Context, imageID, principalID string) (bool, int64, error) {
	if principalID == "" {
		return false, 0, errors.New("toggle like: empty principal id")
	}

	var (
		liked bool
		count int64
	)
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Image)(nil)).
			Set("like_count = like_count").
			Where("id = ?", imageID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("lock image: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("image %s: %w", imageID, ErrNotFound)
		}

		res, err = tx.NewDelete().
			Model((*models.ImageLike)(nil)).
			Where("image_id = ?", imageID).
			Where("principal_id = ?", principalID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("remove like: %w", err)
		}

		if removed, _ := res.RowsAffected(); removed > 0 {
			liked = false
			if _, err := tx.NewUpdate().
				Model((*models.Image)(nil)).
				Set("like_count = like_count - 1").
				Where("id = ?", imageID).
				Where("like_count > 0").
				Exec(ctx); err != nil {
				return fmt.Errorf("decrement like count: %w", err)
			}
		} else {
			res, err = tx.NewInsert().
				Model(&models.ImageLike{ImageID: imageID, PrincipalID: principalID}).
				On("CONFLICT (image_id, principal_id) DO NOTHING").
				Returning("NULL").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("add like: %w", err)
			}
			liked = true
			if inserted, _ := res.RowsAffected(); inserted > 0 {
				if _, err := tx.NewUpdate().
					Model((*models.Image)(nil)).
					Set("like_count = like_count + 1").
					Where("id = ?", imageID).
					Exec(ctx); err != nil {
					return fmt.Errorf("increment like count: %w", err)
				}
			}
		}

		return tx.NewSelect().
			Model((*models.Image)(nil)).
			Column("like_count").
			Where("id = ?", imageID).
			Scan(ctx, &count)
	})
	if err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

// Status reads membership and count.
func (r *BunLikeRepository) Status(ctx context.Context, imageID, principalID string) (bool, int64, error) {
	var count int64
	err := r.db.NewSelect().
		Model((*models.Image)(nil)).
		Column("like_count").
		Where("id = ?", imageID).
		Scan(ctx, &count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, 0, fmt.Errorf("image %s: %w", imageID, ErrNotFound)
		}
		return false, 0, fmt.Errorf("read like count: %w", err)
	}

	if principalID == "" {
		return false, count, nil
	}

	liked, err := r.db.NewSelect().
		Model((*models.ImageLike)(nil)).
		Where("image_id = ?", imageID).
		Where("principal_id = ?", principalID).
		Exists(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("read like membership: %w", err)
	}
	return liked, count, nil
}

// LikedSet returns the subset of imageIDs that principalID has liked.
func (r *BunLikeRepository) LikedSet(ctx context.Context, principalID string, imageIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(imageIDs))
	if principalID == "" || len(imageIDs) == 0 {
		return out, nil
	}

	var liked []string
	err := r.db.NewSelect().
		Model((*models.ImageLike)(nil)).
		Column("image_id").
		Where("principal_id = ?", principalID).
		Where("image_id IN (?)", bun.In(imageIDs)).
		Scan(ctx, &liked)
	if err != nil {
		return nil, fmt.Errorf("read liked set: %w", err)
	}
	for _, id := range liked {
		out[id] = true
	}
	return out, nil
}

// CountMembers returns |likedBy| for imageID. Used to audit the counter.
func (r *BunLikeRepository) CountMembers(ctx context.Context, imageID string) (int, error) {
	n, err := r.db.NewSelect().
		Model((*models.ImageLike)(nil)).
		Where("image_id = ?", imageID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return n, nil
}
