package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20250301000001, down_20250301000001)
}

// up_20250301000001 creates the users table
func up_20250301000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating users table...")

	_, err := db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	fmt.Println(" OK")
	return nil
}

func down_20250301000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping users table...")

	_, err := db.NewDropTable().
		Model((*models.User)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop users table: %w", err)
	}

	fmt.Println(" OK")
	return nil
}
