package cmdutil

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/config"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/bunx"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/migrations"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/repository"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/iam"
)

// IAMServiceBundle bundles the service with its underlying DB connection so callers can
// reuse the connection for other repositories when necessary.
type IAMServiceBundle struct {
	Service iam.Service
	DB      *bun.DB
}

// Close releases the underlying database connection.
func (b *IAMServiceBundle) Close() {
	if b == nil || b.DB == nil {
		return
	}
	if err := bunx.Close(b.DB); err != nil {
		log.WithError(err).Warn("failed to close database")
	}
}

// NewIAMServiceBundle centralizes IAM service construction for CLI commands.
// Pending migrations are applied first when auto_migrate is set.
func NewIAMServiceBundle(ctx context.Context, cfg *config.Config) (*IAMServiceBundle, error) {
	db, err := bunx.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.AutoMigrate {
		if _, err := migrations.Apply(ctx, db); err != nil {
			_ = bunx.Close(db)
			return nil, err
		}
	}

	tokens, err := auth.NewTokenIssuer(cfg.Session.Secret, cfg.Session.TTL, cfg.Session.Issuer)
	if err != nil {
		_ = bunx.Close(db)
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	iamService, err := iam.NewIAMService(
		iam.IAMServiceDependencies{
			Users:   repository.NewBunUserRepository(db),
			Revoked: repository.NewBunRevokedTokenRepository(db),
			Tokens:  tokens,
		},
		iam.IAMServiceConfig{BcryptCost: cfg.Auth.BcryptCost},
	)
	if err != nil {
		_ = bunx.Close(db)
		return nil, fmt.Errorf("failed to create IAM service: %w", err)
	}

	return &IAMServiceBundle{Service: iamService, DB: db}, nil
}
