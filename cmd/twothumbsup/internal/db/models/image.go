package models

import (
	"regexp"
	"time"

	"github.com/uptrace/bun"
)

var imageIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidImageID reports whether id is acceptable as an image path parameter.
func ValidImageID(id string) bool {
	return imageIDPattern.MatchString(id)
}

// Image is a likeable resource. Data is an opaque blob served back verbatim.
type Image struct {
	bun.BaseModel `bun:"table:images,alias:img"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name,notnull"`
	ContentType string    `bun:"content_type,notnull"`
	Data        []byte    `bun:"data"`
	Tags        []string  `bun:"tags,type:jsonb,notnull,default:'[]'"`
	LikeCount   int64     `bun:"like_count,notnull,default:0"`
	UploadedBy  *string   `bun:"uploaded_by"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// ImageLike is one member of an image's liked-by set. The composite primary
// key gives the set semantics.
type ImageLike struct {
	bun.BaseModel `bun:"table:image_likes,alias:il"`

	ImageID     string    `bun:"image_id,pk"`
	PrincipalID string    `bun:"principal_id,pk"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
