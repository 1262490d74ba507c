package iam

import (
	"context"
	"errors"
	"fmt"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/repository"
)

// ExternalTokenVerifier checks tokens minted by the external IdP.
// *auth.ExternalVerifier satisfies it.
type ExternalTokenVerifier interface {
	VerifyExternal(ctx context.Context, token string) (*auth.ExternalProfile, error)
}

// ExternalAuthenticator authenticates Bearer tokens issued by the external IdP.
//
// A verified token whose subject is already linked to a user record resolves
// to that user with the stored role. An unlinked subject still resolves, with
// the subject as its ID and RoleUser, so the profile can be synced.
type ExternalAuthenticator struct {
	verifier ExternalTokenVerifier
	users    repository.UserRepository
}

// NewExternalAuthenticator returns an authenticator backed by verifier.
func NewExternalAuthenticator(verifier ExternalTokenVerifier, users repository.UserRepository) *ExternalAuthenticator {
	return &ExternalAuthenticator{verifier: verifier, users: users}
}

// Authenticate implements Authenticator.
func (a *ExternalAuthenticator) Authenticate(ctx context.Context, req AuthRequest) (*auth.Principal, error) {
	token := req.Bearer()
	if token == "" {
		return nil, nil
	}

	profile, err := a.verifier.VerifyExternal(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetByExternalSubject(ctx, profile.Subject)
	switch {
	case err == nil:
		principal, err := principalFromUser(user)
		if err != nil {
			return nil, err
		}
		principal.External = profile
		return principal, nil
	case errors.Is(err, repository.ErrNotFound):
		principal, err := auth.NewUserPrincipal(profile.Subject, auth.RoleUser)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
		}
		principal.Username = profile.PreferredUsername()
		principal.Email = profile.Email
		principal.DisplayName = profile.DisplayName()
		principal.PictureURL = profile.Picture
		principal.External = profile
		return principal, nil
	default:
		return nil, fmt.Errorf("load user by subject: %w", err)
	}
}

// AnonymousCookieAuthenticator resolves the per-browser anonymous identity.
// A missing or malformed cookie counts as no credential; the like handler
// allocates a fresh one.
type AnonymousCookieAuthenticator struct{}

// Authenticate implements Authenticator.
func (AnonymousCookieAuthenticator) Authenticate(_ context.Context, req AuthRequest) (*auth.Principal, error) {
	value := req.Cookie(auth.AnonymousCookieName)
	if !auth.WellFormedAnonymousValue(value) {
		return nil, nil
	}
	return auth.NewAnonymousPrincipal(value)
}
