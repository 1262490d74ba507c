package server

import (
	"errors"
	"net/http"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/repository"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/iam"
)

// UserResponse wraps a single user view.
type UserResponse struct {
	User iam.UserView `json:"user"`
}

var userErrors = errorMessages{notFound: "User not synced", conflict: "Username or email already taken"}

func externalProfile(r *http.Request) (*auth.ExternalProfile, bool) {
	principal, ok := auth.GetPrincipalFromContext(r.Context())
	if !ok || principal.External == nil {
		return nil, false
	}
	return principal.External, true
}

// HandleSyncMe upserts the local record for the external token's subject.
func HandleSyncMe(iamService iam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, ok := externalProfile(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "An external identity token is required")
			return
		}

		user, err := iamService.SyncExternalUser(r.Context(), profile)
		if err != nil {
			respondServiceError(w, r, err, userErrors)
			return
		}
		writeJSON(w, http.StatusOK, UserResponse{User: iam.ViewOfUser(user)})
	}
}

// HandleGetMe returns the local record linked to the external subject.
func HandleGetMe(iamService iam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, ok := externalProfile(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "An external identity token is required")
			return
		}

		user, err := iamService.GetUserBySubject(r.Context(), profile.Subject)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusNotFound, userErrors.notFound)
				return
			}
			respondServiceError(w, r, err, userErrors)
			return
		}
		writeJSON(w, http.StatusOK, UserResponse{User: iam.ViewOfUser(user)})
	}
}
