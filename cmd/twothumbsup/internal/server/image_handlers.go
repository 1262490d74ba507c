package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/authz"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/repository"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/images"
)

// multipart overhead allowed on top of the image itself
const uploadFormSlack = 1 << 20

// HandleListImages returns a page of images with the caller's liked flags.
func HandleListImages(svc *images.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := repository.ImageFilter{
			Search: q.Get("search"),
			Tag:    q.Get("tag"),
		}
		var err error
		if filter.Limit, err = intParam(q.Get("limit")); err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		if filter.Offset, err = intParam(q.Get("offset")); err != nil {
			writeError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}

		var principalID string
		if principal, ok := auth.GetPrincipalFromContext(r.Context()); ok {
			principalID = principal.ID
		}

		page, err := svc.List(r.Context(), filter, principalID)
		if err != nil {
			respondServiceError(w, r, err, imageErrors)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// HandleGetImage returns image metadata.
func HandleGetImage(svc *images.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondServiceError(w, r, err, imageErrors)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// HandleImageData streams the stored bytes with their content type.
func HandleImageData(svc *images.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		img, err := svc.Data(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondServiceError(w, r, err, imageErrors)
			return
		}
		w.Header().Set("Content-Type", img.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(img.Data)
	}
}

// HandleCreateImage accepts a multipart upload with the fields image, name
// and tags.
func HandleCreateImage(svc *images.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !parseUploadForm(w, r) {
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		data, contentType, ok := readUploadedImage(w, r, true)
		if !ok {
			return
		}

		in := images.CreateInput{
			Name:        r.FormValue("name"),
			ContentType: contentType,
			Data:        data,
			Tags:        r.FormValue("tags"),
		}
		// The dev bypass admin has no users row to reference.
		if principal, ok := auth.GetPrincipalFromContext(r.Context()); ok && principal.ID != authz.SyntheticAdmin().ID {
			in.UploadedBy = principal.ID
		}

		view, err := svc.Create(r.Context(), in)
		if err != nil {
			respondServiceError(w, r, err, imageErrors)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

// HandleUpdateImage edits an image from a multipart form. name is required;
// image and tags replace the stored values when present.
func HandleUpdateImage(svc *images.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !parseUploadForm(w, r) {
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		data, contentType, ok := readUploadedImage(w, r, false)
		if !ok {
			return
		}

		view, err := svc.Update(r.Context(), chi.URLParam(r, "id"), images.UpdateInput{
			Name:        r.FormValue("name"),
			ContentType: contentType,
			Data:        data,
			Tags:        r.FormValue("tags"),
		})
		if err != nil {
			respondServiceError(w, r, err, imageErrors)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func parseUploadForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, images.MaxImageBytes+uploadFormSlack)
	if err := r.ParseMultipartForm(images.MaxImageBytes + uploadFormSlack); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image exceeds the 10 MiB limit")
			return false
		}
		writeError(w, http.StatusBadRequest, "Expected a multipart form")
		return false
	}
	return true
}

// readUploadedImage reads the image form file. A missing file is an error
// only when required.
func readUploadedImage(w http.ResponseWriter, r *http.Request, required bool) ([]byte, string, bool) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) && !required {
		return nil, "", true
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, images.MaxImageBytes+1))
	if err != nil {
		log.WithError(err).Error("failed to read upload")
		writeError(w, http.StatusBadRequest, "Failed to read image")
		return nil, "", false
	}
	return data, header.Header.Get("Content-Type"), true
}

// HandleDeleteImage removes an image and its likes.
func HandleDeleteImage(svc *images.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			respondServiceError(w, r, err, imageErrors)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "Image deleted"})
	}
}
