// Package images manages the image catalogue that likes are attached to.
package images

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/models"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/repository"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/validation"
)

// MaxImageBytes is the largest accepted upload.
const MaxImageBytes = 10 << 20

var (
	// ErrInvalidID is returned for ids outside [A-Za-z0-9_-]{1,64}.
	ErrInvalidID = errors.New("invalid image id")
	// ErrInvalidInput wraps every upload validation failure.
	ErrInvalidInput = errors.New("invalid image")
)

// View is the metadata returned to clients. Data is never included.
type View struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	ContentType        string    `json:"contentType"`
	Tags               []string  `json:"tags"`
	LikeCount          int64     `json:"likeCount"`
	LikedByCurrentUser bool      `json:"likedByCurrentUser"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Page is one page of List results.
type Page struct {
	Images []View `json:"images"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// CreateInput is an admin upload.
type CreateInput struct {
	Name        string
	ContentType string
	Data        []byte
	// Tags is a CSV list or a JSON array of strings.
	Tags       string
	UploadedBy string
}

// UpdateInput is an admin edit. Name is required; Data and Tags replace the
// stored values only when non-empty.
type UpdateInput struct {
	Name        string
	ContentType string
	Data        []byte
	Tags        string
}

// Service reads and writes images.
type Service struct {
	images    repository.ImageRepository
	likes     repository.LikeRepository
	validator *validation.SchemaValidator
}

// NewService creates the image service.
func NewService(images repository.ImageRepository, likes repository.LikeRepository, validator *validation.SchemaValidator) *Service {
	return &Service{images: images, likes: likes, validator: validator}
}

// List returns a page of images. likedByCurrentUser is filled for principalID;
// an empty principalID leaves it false everywhere.
func (s *Service) List(ctx context.Context, filter repository.ImageFilter, principalID string) (*Page, error) {
	filter = filter.Normalize()
	rows, total, err := s.images.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	liked, err := s.likes.LikedSet(ctx, principalID, ids)
	if err != nil {
		return nil, fmt.Errorf("load liked set: %w", err)
	}

	page := &Page{Images: make([]View, 0, len(rows)), Total: total, Limit: filter.Limit, Offset: filter.Offset}
	for i := range rows {
		v := viewOf(&rows[i])
		v.LikedByCurrentUser = liked[rows[i].ID]
		page.Images = append(page.Images, v)
	}
	return page, nil
}

// Get returns image metadata.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	if !models.ValidImageID(id) {
		return nil, ErrInvalidID
	}
	img, err := s.images.GetMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	v := viewOf(img)
	return &v, nil
}

// Data returns the image including its bytes.
func (s *Service) Data(ctx context.Context, id string) (*models.Image, error) {
	if !models.ValidImageID(id) {
		return nil, ErrInvalidID
	}
	return s.images.GetByID(ctx, id)
}

// Create validates and stores an upload.
func (s *Service) Create(ctx context.Context, in CreateInput) (*View, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: image file is required", ErrInvalidInput)
	}
	contentType, err := checkData(in.Data, in.ContentType)
	if err != nil {
		return nil, err
	}

	tags, err := s.validator.ParseTags(in.Tags)
	if err != nil {
		return nil, fmt.Errorf("%w: tags: %v", ErrInvalidInput, err)
	}

	img := &models.Image{
		Name:        name,
		ContentType: contentType,
		Data:        in.Data,
		Tags:        tags,
	}
	if in.UploadedBy != "" {
		uploader := in.UploadedBy
		img.UploadedBy = &uploader
	}
	if err := s.images.Create(ctx, img); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"image_id": img.ID, "bytes": len(in.Data)}).Info("image uploaded")
	v := viewOf(img)
	return &v, nil
}

// Update edits an existing image. The like count and uploader are kept.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*View, error) {
	if !models.ValidImageID(id) {
		return nil, ErrInvalidID
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	img, err := s.images.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	img.Name = name

	if len(in.Data) > 0 {
		contentType, err := checkData(in.Data, in.ContentType)
		if err != nil {
			return nil, err
		}
		img.Data = in.Data
		img.ContentType = contentType
	}
	if strings.TrimSpace(in.Tags) != "" {
		tags, err := s.validator.ParseTags(in.Tags)
		if err != nil {
			return nil, fmt.Errorf("%w: tags: %v", ErrInvalidInput, err)
		}
		img.Tags = tags
	}

	if err := s.images.Update(ctx, img); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"image_id": id, "replaced_data": len(in.Data) > 0}).Info("image updated")
	v := viewOf(img)
	return &v, nil
}

// Delete removes an image and, by cascade, its likes.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !models.ValidImageID(id) {
		return ErrInvalidID
	}
	if err := s.images.Delete(ctx, id); err != nil {
		return err
	}
	log.WithField("image_id", id).Info("image deleted")
	return nil
}

// checkData enforces the size limit and resolves an image/* content type,
// sniffing the bytes when the declared one is missing or not an image.
func checkData(data []byte, declared string) (string, error) {
	if len(data) > MaxImageBytes {
		return "", fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidInput, MaxImageBytes)
	}
	contentType := declared
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: unsupported content type %s", ErrInvalidInput, contentType)
	}
	return contentType, nil
}

func viewOf(img *models.Image) View {
	tags := img.Tags
	if tags == nil {
		tags = []string{}
	}
	return View{
		ID:          img.ID,
		Name:        img.Name,
		ContentType: img.ContentType,
		Tags:        tags,
		LikeCount:   img.LikeCount,
		CreatedAt:   img.CreatedAt,
	}
}
