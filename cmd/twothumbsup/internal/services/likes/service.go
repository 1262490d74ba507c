// Package likes toggles and reports per-principal likes on images.
package likes

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/models"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/repository"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/telemetry"
)

var (
	// ErrInvalidImageID is returned for ids outside [A-Za-z0-9_-]{1,64}.
	ErrInvalidImageID = errors.New("invalid image id")
	// ErrNoPrincipal is returned by Toggle when no principal id is supplied.
	ErrNoPrincipal = errors.New("toggle requires a principal")
)

// Result is the liked-by state of one image as seen by one principal.
type Result struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"likeCount"`
}

// Service toggles likes. Membership and counter are changed together by the
// repository; this layer adds validation and telemetry.
type Service struct {
	likes   repository.LikeRepository
	metrics *telemetry.Metrics
}

// NewService returns a like service. metrics may be nil.
func NewService(likes repository.LikeRepository, metrics *telemetry.Metrics) *Service {
	return &Service{likes: likes, metrics: metrics}
}

// Toggle flips principalID's like on imageID. Toggling twice restores the
// previous result. A missing image returns repository.ErrNotFound.
func (s *Service) Toggle(ctx context.Context, imageID, principalID string) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "twothumbsup/services/likes", "likes.Toggle",
		attribute.String(telemetry.AttrImageID, imageID),
		attribute.String(telemetry.AttrPrincipalID, principalID),
	)
	defer span.End()

	if !models.ValidImageID(imageID) {
		return Result{}, ErrInvalidImageID
	}
	if principalID == "" {
		return Result{}, ErrNoPrincipal
	}

	liked, count, err := s.likes.Toggle(ctx, imageID, principalID)
	if err != nil {
		telemetry.RecordError(span, err)
		return Result{}, err
	}
	span.SetAttributes(
		attribute.Bool(telemetry.AttrLiked, liked),
		attribute.Int64(telemetry.AttrLikeCount, count),
	)
	s.metrics.ObserveToggle(liked)
	return Result{Liked: liked, LikeCount: count}, nil
}

// Status reports whether principalID likes imageID. An empty principalID
// reads the count only.
func (s *Service) Status(ctx context.Context, imageID, principalID string) (Result, error) {
	if !models.ValidImageID(imageID) {
		return Result{}, ErrInvalidImageID
	}
	liked, count, err := s.likes.Status(ctx, imageID, principalID)
	if err != nil {
		return Result{}, err
	}
	return Result{Liked: liked, LikeCount: count}, nil
}
