package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20250301000002, down_20250301000002)
}

// up_20250301000002 creates images and the image_likes membership table.
// like_count is kept equal to the number of image_likes rows by the toggle
// transaction; the CHECK keeps it from going negative.
func up_20250301000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating images and image_likes tables...")

	_, err := db.NewCreateTable().
		Model((*models.Image)(nil)).
		IfNotExists().
		ForeignKey(`("uploaded_by") REFERENCES "users" ("id") ON DELETE SET NULL`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create images table: %w", err)
	}

	if IsPostgreSQL(db) {
		_, err = db.ExecContext(ctx, `
			ALTER TABLE images ADD CONSTRAINT images_like_count_nonnegative CHECK (like_count >= 0)
		`)
		if err != nil {
			return fmt.Errorf("failed to add like_count check: %w", err)
		}
	}

	_, err = db.NewCreateTable().
		Model((*models.ImageLike)(nil)).
		IfNotExists().
		ForeignKey(`("image_id") REFERENCES "images" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create image_likes table: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_image_likes_principal ON image_likes(principal_id)
	`)
	if err != nil {
		return fmt.Errorf("failed to create image_likes principal index: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_images_created_at ON images(created_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to create images created_at index: %w", err)
	}

	fmt.Println(" OK")
	return nil
}

func down_20250301000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping image_likes and images tables...")

	for _, model := range []any{(*models.ImageLike)(nil), (*models.Image)(nil)} {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}

	fmt.Println(" OK")
	return nil
}
