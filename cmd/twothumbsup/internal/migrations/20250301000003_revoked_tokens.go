package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20250301000003, down_20250301000003)
}

// up_20250301000003 creates the session token denylist written by logout.
func up_20250301000003(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating revoked_tokens table...")

	_, err := db.NewCreateTable().
		Model((*models.RevokedToken)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create revoked_tokens table: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_revoked_tokens_exp ON revoked_tokens(exp)
	`)
	if err != nil {
		return fmt.Errorf("failed to create revoked_tokens exp index: %w", err)
	}

	fmt.Println(" OK")
	return nil
}

func down_20250301000003(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping revoked_tokens table...")

	_, err := db.NewDropTable().
		Model((*models.RevokedToken)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop revoked_tokens table: %w", err)
	}

	fmt.Println(" OK")
	return nil
}
