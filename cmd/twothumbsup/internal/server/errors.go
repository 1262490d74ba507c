package server

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/repository"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/iam"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/images"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/likes"
)

// errorMessages names the resource in 404 and 409 responses.
type errorMessages struct {
	notFound string
	conflict string
}

var imageErrors = errorMessages{notFound: "Image not found", conflict: "Image already exists"}

// respondServiceError maps service and repository errors to a status code.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, msgs errorMessages) {
	switch {
	case errors.Is(err, likes.ErrInvalidImageID), errors.Is(err, images.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "Invalid image id")
	case errors.Is(err, images.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, iam.ErrIncompleteProfile):
		writeError(w, http.StatusBadRequest, "Token is missing sub or email")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, msgs.notFound)
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, msgs.conflict)
	default:
		log.WithError(err).WithFields(log.Fields{"method": r.Method, "path": r.URL.Path}).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
