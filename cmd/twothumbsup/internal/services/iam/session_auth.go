package iam

import (
	"context"
	"errors"
	"fmt"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/repository"
)

// tokenSource picks where a local session token is read from.
type tokenSource int

const (
	sourceCookie tokenSource = iota
	sourceBearer
)

// LocalTokenAuthenticator authenticates locally issued session tokens.
//
//  1. Extract the token (ttu_session cookie or Authorization: Bearer)
//  2. Return (nil, nil) if not present
//  3. Verify signature and expiry
//  4. Reject revoked jti
//  5. Lookup user by the token subject
//  6. Construct Principal with the role stored on the user record
//
// This authenticator is stateless and thread-safe.
type LocalTokenAuthenticator struct {
	source  tokenSource
	tokens  *auth.TokenIssuer
	users   repository.UserRepository
	revoked repository.RevokedTokenRepository
}

// NewSessionCookieAuthenticator reads the token from the session cookie.
func NewSessionCookieAuthenticator(tokens *auth.TokenIssuer, users repository.UserRepository, revoked repository.RevokedTokenRepository) *LocalTokenAuthenticator {
	return &LocalTokenAuthenticator{source: sourceCookie, tokens: tokens, users: users, revoked: revoked}
}

// NewLocalBearerAuthenticator reads the token from the Authorization header.
func NewLocalBearerAuthenticator(tokens *auth.TokenIssuer, users repository.UserRepository, revoked repository.RevokedTokenRepository) *LocalTokenAuthenticator {
	return &LocalTokenAuthenticator{source: sourceBearer, tokens: tokens, users: users, revoked: revoked}
}

// Authenticate implements Authenticator.
func (a *LocalTokenAuthenticator) Authenticate(ctx context.Context, req AuthRequest) (*auth.Principal, error) {
	var token string
	switch a.source {
	case sourceCookie:
		token = req.Cookie(auth.SessionCookieName)
	case sourceBearer:
		token = req.Bearer()
	}
	if token == "" {
		return nil, nil
	}

	claims, err := a.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	if a.revoked != nil {
		revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return nil, auth.ErrTokenRevoked
		}
	}

	user, err := a.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	principal, err := principalFromUser(user)
	if err != nil {
		return nil, err
	}
	principal.TokenID = claims.ID
	return principal, nil
}
