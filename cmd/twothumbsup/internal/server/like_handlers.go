package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/models"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/likes"
)

// HandleToggleLike flips the caller's like on an image. A caller without any
// identity is given an anonymous cookie first, so the toggle always has a
// principal to record.
func HandleToggleLike(svc *likes.Service, allocator *auth.AnonymousAllocator, cookies auth.CookieSettings, anonTTL time.Duration) http.HandlerFunc {
	if allocator == nil {
		allocator = auth.NewAnonymousAllocator()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		imageID := chi.URLParam(r, "id")
		if !models.ValidImageID(imageID) {
			writeError(w, http.StatusBadRequest, "Invalid image id")
			return
		}

		principal, ok := auth.GetPrincipalFromContext(r.Context())
		if !ok {
			value, issued, err := allocator.Ensure(auth.CookieValue(r, auth.AnonymousCookieName))
			if err != nil {
				log.WithError(err).Error("failed to allocate anonymous identity")
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			principal, err = auth.NewAnonymousPrincipal(value)
			if err != nil {
				log.WithError(err).Error("failed to build anonymous principal")
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if issued {
				cookies.SetAnonymousCookie(w, value, anonTTL)
			}
		}

		result, err := svc.Toggle(r.Context(), imageID, principal.ID)
		if err != nil {
			respondServiceError(w, r, err, imageErrors)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// HandleLikeStatus reports the caller's like state and the image's count.
// Callers without an identity see liked=false.
func HandleLikeStatus(svc *likes.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var principalID string
		if principal, ok := auth.GetPrincipalFromContext(r.Context()); ok {
			principalID = principal.ID
		}

		result, err := svc.Status(r.Context(), chi.URLParam(r, "id"), principalID)
		if err != nil {
			respondServiceError(w, r, err, imageErrors)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
