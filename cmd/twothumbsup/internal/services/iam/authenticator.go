package iam

import (
	"context"
	"net/http"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
)

// Authenticator validates one kind of credential and returns a Principal.
//
// Return values:
//   - (principal, nil): Authentication successful
//   - (nil, nil): Credentials not present (not an error, try next authenticator)
//   - (nil, error): Credentials present but invalid
type Authenticator interface {
	Authenticate(ctx context.Context, req AuthRequest) (*auth.Principal, error)
}

// AuthRequest wraps the parts of an HTTP request that carry credentials.
type AuthRequest struct {
	// Headers contains HTTP headers (including Authorization, Cookie)
	Headers http.Header

	// Cookies contains parsed cookies
	Cookies []*http.Cookie
}

// NewAuthRequest captures the credential-bearing parts of r.
func NewAuthRequest(r *http.Request) AuthRequest {
	return AuthRequest{Headers: r.Header, Cookies: r.Cookies()}
}

// Cookie returns the value of the named cookie or "".
func (r AuthRequest) Cookie(name string) string {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// Bearer returns the Authorization: Bearer token or "".
func (r AuthRequest) Bearer() string {
	if r.Headers == nil {
		return ""
	}
	return auth.BearerTokenFromHeader(r.Headers)
}
