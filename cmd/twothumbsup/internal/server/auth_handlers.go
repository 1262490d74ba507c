package server

import (
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/iam"
)

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=1024"`
}

// LoginResponse is returned by a successful POST /login. The token itself
// only travels in the session cookie.
type LoginResponse struct {
	User      iam.UserView `json:"user"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// AuthCheckResponse is the body of GET /auth/check.
type AuthCheckResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *iam.UserView `json:"user,omitempty"`
}

// HandleLogin verifies a username and password and sets the session cookie.
// Every credential failure answers with the same message.
func HandleLogin(iamService iam.Service, cookies auth.CookieSettings) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		session, err := iamService.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "Invalid credentials")
				return
			}
			log.WithError(err).Error("login failed")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		cookies.SetSessionCookie(w, session.Token, session.ExpiresAt)
		writeJSON(w, http.StatusOK, LoginResponse{
			User:      iam.ViewOfUser(session.User),
			ExpiresAt: session.ExpiresAt,
		})
	}
}

// HandleLogout revokes the presented session token, if any, and replaces the
// cookie with an expired one. It always answers 200.
func HandleLogout(iamService iam.Service, cookies auth.CookieSettings) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := auth.CookieValue(r, auth.SessionCookieName)
		if token == "" {
			token = auth.BearerToken(r)
		}
		if err := iamService.Logout(r.Context(), token); err != nil {
			log.WithError(err).Warn("failed to revoke session on logout")
		}

		cookies.ClearSessionCookie(w)
		writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
	}
}

// HandleAuthCheck reports whether the local session resolved to a user.
func HandleAuthCheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.GetPrincipalFromContext(r.Context())
		if !ok || !principal.IsAuthenticated() {
			writeJSON(w, http.StatusUnauthorized, AuthCheckResponse{Authenticated: false})
			return
		}
		view := iam.ViewOfPrincipal(principal)
		writeJSON(w, http.StatusOK, AuthCheckResponse{Authenticated: true, User: &view})
	}
}

// HandleSSOLogin starts the OIDC authorization code flow.
func HandleSSOLogin(relyingParty *auth.RelyingParty) http.Handler {
	return relyingParty.LoginHandler()
}

// HandleSSOCallback finishes the code flow, upserts the local user from the ID
// token and issues an ordinary local session before redirecting.
func HandleSSOCallback(relyingParty *auth.RelyingParty, iamService iam.Service, cookies auth.CookieSettings, redirectTo string) http.Handler {
	if redirectTo == "" {
		redirectTo = "/"
	}
	return relyingParty.CallbackHandler(func(w http.ResponseWriter, r *http.Request, profile *auth.ExternalProfile) {
		ctx := r.Context()

		user, err := iamService.SyncExternalUser(ctx, profile)
		if err != nil {
			log.WithError(err).WithField("subject", profile.Subject).Error("SSO callback: failed to sync user")
			respondServiceError(w, r, err, errorMessages{notFound: "User not found", conflict: "Account already linked to another identity"})
			return
		}

		session, err := iamService.IssueSession(ctx, user)
		if err != nil {
			log.WithError(err).WithField("user_id", user.ID).Error("SSO callback: failed to issue session")
			writeError(w, http.StatusInternalServerError, "Failed to create session")
			return
		}

		cookies.SetSessionCookie(w, session.Token, session.ExpiresAt)
		http.Redirect(w, r, redirectTo, http.StatusFound)
	})
}
