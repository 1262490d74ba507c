package auth

import "errors"

// Credential failures. Everything except ErrNoCredential surfaces as 401.
var (
	// ErrNoCredential means no session material was presented at all.
	ErrNoCredential = errors.New("no credential")
	// ErrInvalidSignature covers bad MACs and malformed local tokens.
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrTokenRevoked     = errors.New("token revoked")
	// ErrInvalidToken is returned for any external token failure, including
	// an unreachable key provider.
	ErrInvalidToken = errors.New("invalid external token")
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials is returned by password login for both unknown
	// users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// IsAuthenticationFailure reports whether err should be answered with 401.
func IsAuthenticationFailure(err error) bool {
	return errors.Is(err, ErrNoCredential) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrTokenRevoked) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrInvalidCredentials)
}
