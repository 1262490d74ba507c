package auth

import (
	"context"
	"errors"
	"strings"
)

// PrincipalKind describes how a request's identity was established.
type PrincipalKind string

const (
	// KindUser is a principal backed by a stored user record.
	KindUser PrincipalKind = "authenticated-user"
	// KindAnonymous is a per-browser pseudo-identity used only for likes.
	KindAnonymous PrincipalKind = "anonymous"
)

// Role names stored on user records.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// AnonymousIDPrefix is prepended to the anonymous cookie value to form a principal id.
const AnonymousIDPrefix = "anon_"

// Principal is the resolved identity attached to a request. It is built per
// request by the identity resolver and never persisted.
type Principal struct {
	Kind PrincipalKind
	// ID is the users.id for authenticated users, anon_<cookie> otherwise.
	ID string
	// Role is only meaningful for KindUser. Anonymous principals carry RoleUser.
	Role string

	// Populated for KindUser only.
	Username    string
	Email       string
	DisplayName string
	PictureURL  string

	// TokenID is the jti of the local session token that produced this principal, if any.
	TokenID string
	// External is set when the principal came from an external IdP token.
	// Until the profile is synced, ID holds the external subject.
	External *ExternalProfile
}

// NewUserPrincipal returns an authenticated principal for a stored user.
// An unknown role is treated as RoleUser.
func NewUserPrincipal(id, role string) (*Principal, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("user principal requires an id")
	}
	if role != RoleAdmin {
		role = RoleUser
	}
	return &Principal{Kind: KindUser, ID: id, Role: role}, nil
}

// NewAnonymousPrincipal returns the anonymous principal for a cookie value.
func NewAnonymousPrincipal(cookieValue string) (*Principal, error) {
	if cookieValue == "" {
		return nil, errors.New("anonymous principal requires a cookie value")
	}
	return &Principal{Kind: KindAnonymous, ID: AnonymousPrincipalID(cookieValue), Role: RoleUser}, nil
}

// AnonymousPrincipalID derives the like-set member id for an anonymous cookie.
func AnonymousPrincipalID(cookieValue string) string {
	return AnonymousIDPrefix + cookieValue
}

// IsAuthenticated reports whether p is a verified account.
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.Kind == KindUser
}

// IsAdmin reports whether p is an authenticated admin.
func (p *Principal) IsAdmin() bool {
	return p.IsAuthenticated() && p.Role == RoleAdmin
}

type principalContextKey struct{}

// SetPrincipalContext stores the resolved principal on the context for downstream consumers.
func SetPrincipalContext(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// GetPrincipalFromContext retrieves the resolved principal from the context.
func GetPrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(*Principal)
	return principal, ok && principal != nil
}

type resolutionErrorContextKey struct{}

// SetResolutionError records why identity resolution failed, so that handlers
// which require authentication can surface it and public handlers can ignore it.
func SetResolutionError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, resolutionErrorContextKey{}, err)
}

// GetResolutionError returns the error recorded by SetResolutionError, if any.
func GetResolutionError(ctx context.Context) error {
	err, _ := ctx.Value(resolutionErrorContextKey{}).(error)
	return err
}
