package repository

import (
	"context"
	"errors"
	"time"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/models"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would break a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// UserRepository exposes persistence operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByExternalSubject(ctx context.Context, subject string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// ImageFilter narrows List results.
type ImageFilter struct {
	// Search matches a substring of the image name, case-insensitively.
	Search string
	// Tag keeps images carrying this exact tag.
	Tag    string
	Limit  int
	Offset int
}

// Page size bounds applied by Normalize.
const (
	DefaultImagePageSize = 20
	MaxImagePageSize     = 100
)

// Normalize clamps Limit to (0, MaxImagePageSize] and Offset to >= 0.
func (f ImageFilter) Normalize() ImageFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultImagePageSize
	}
	if f.Limit > MaxImagePageSize {
		f.Limit = MaxImagePageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// ImageRepository exposes persistence operations for the image blob store.
type ImageRepository interface {
	Create(ctx context.Context, image *models.Image) error
	// GetByID returns the image including its data.
	GetByID(ctx context.Context, id string) (*models.Image, error)
	// GetMeta returns the image without its data.
	GetMeta(ctx context.Context, id string) (*models.Image, error)
	// List returns one page of images without data, newest first, and the total match count.
	List(ctx context.Context, filter ImageFilter) ([]models.Image, int, error)
	// Update rewrites name, content type, data and tags. like_count is untouched.
	Update(ctx context.Context, image *models.Image) error
	Delete(ctx context.Context, id string) error
}

// LikeRepository maintains an image's liked-by set and its counter together.
type LikeRepository interface {
	// Toggle flips principalID's membership for imageID in one transaction
	// and returns the new membership and count.
	Toggle(ctx context.Context, imageID, principalID string) (liked bool, likeCount int64, err error)
	// Status reads membership and count without side effects. An empty
	// principalID is never a member.
	Status(ctx context.Context, imageID, principalID string) (liked bool, likeCount int64, err error)
	// LikedSet returns which of imageIDs principalID has liked.
	LikedSet(ctx context.Context, principalID string, imageIDs []string) (map[string]bool, error)
}

// RevokedTokenRepository is the session token denylist.
type RevokedTokenRepository interface {
	Create(ctx context.Context, token *models.RevokedToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
