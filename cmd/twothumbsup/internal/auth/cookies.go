package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"
)

const (
	SessionCookieName   = "ttu_session"
	AnonymousCookieName = "ttu_anon"
)

// CookieSettings carries the attributes shared by every cookie the API sets.
type CookieSettings struct {
	// Secure is set in production.
	Secure bool
}

// SetSessionCookie stores a session token until expiresAt.
func (s CookieSettings) SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie replaces the session cookie with an already expired one.
func (s CookieSettings) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// SetAnonymousCookie persists an anonymous identity for ttl.
func (s CookieSettings) SetAnonymousCookie(w http.ResponseWriter, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonymousCookieName,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// CookieValue returns the value of the named cookie or "" if absent.
func CookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// BearerToken extracts the token from an Authorization: Bearer header.
// It returns "" when the header is absent or uses another scheme.
func BearerToken(r *http.Request) string {
	return BearerTokenFromHeader(r.Header)
}

// BearerTokenFromHeader is BearerToken for a bare header set.
func BearerTokenFromHeader(h http.Header) string {
	if h.Get("Authorization") == "" {
		return ""
	}
	token, err := oidctoken.GetTokenString(h.Get, [][]options.TokenStringOption{{}})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(token)
}
